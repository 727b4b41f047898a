package camera

import (
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cicerolneto/entangle/camera"
	"github.com/cicerolneto/entangle/imgfile"
	"github.com/google/uuid"
	"github.com/spf13/afero"
)

// FileInfo describes a file downloaded from the camera
type FileInfo struct {
	ID       string    `json:"id"`
	Folder   string    `json:"folder"`
	Name     string    `json:"name"`
	MIMEType string    `json:"mimetype,omitempty"`
	Size     int64     `json:"size"`
	CRC32    uint32    `json:"crc32"`
	Added    time.Time `json:"added"`
	Recorded string    `json:"recorded,omitempty"`
}

type entry struct {
	seq  int
	info FileInfo
	img  *imgfile.Image
}

// registry keeps the files downloaded during the life of the server, each
// stored under dir/id/name so the image pipeline can read them back
type registry struct {
	mu    sync.Mutex
	seq   int
	fs    afero.Fs
	dir   string
	files map[string]*entry
}

func newRegistry(fs afero.Fs, dir string) *registry {
	return &registry{fs: fs, dir: dir, files: make(map[string]*entry)}
}

// localName keeps the camera's name with the extension lowercased, which is
// how raw files are recognized
func localName(name string) string {
	ext := path.Ext(name)
	return strings.TrimSuffix(name, ext) + strings.ToLower(ext)
}

func (r *registry) add(f *camera.File) (FileInfo, error) {
	id := uuid.New().String()
	fn := path.Join(r.dir, id, localName(f.Name))
	if err := r.fs.MkdirAll(path.Dir(fn), 0777); err != nil {
		return FileInfo{}, err
	}
	if err := afero.WriteFile(r.fs, fn, f.Data, 0666); err != nil {
		return FileInfo{}, err
	}
	e := &entry{
		info: FileInfo{
			ID:       id,
			Folder:   f.Folder,
			Name:     f.Name,
			MIMEType: f.MIMEType,
			Size:     int64(len(f.Data)),
			CRC32:    f.Checksum(),
			Added:    time.Now(),
		},
		img: imgfile.NewWithFs(r.fs, fn),
	}
	r.mu.Lock()
	r.seq++
	e.seq = r.seq
	r.files[id] = e
	r.mu.Unlock()
	return e.info, nil
}

func (r *registry) setRecorded(id, p string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.files[id]; ok {
		e.info.Recorded = p
	}
}

func (r *registry) get(id string) (FileInfo, *imgfile.Image, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.files[id]
	if !ok {
		return FileInfo{}, nil, false
	}
	return e.info, e.img, true
}

// list returns the files, oldest first
func (r *registry) list() []FileInfo {
	r.mu.Lock()
	entries := make([]*entry, 0, len(r.files))
	for _, e := range r.files {
		entries = append(entries, e)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]FileInfo, len(entries))
	for i, e := range entries {
		out[i] = e.info
	}
	r.mu.Unlock()
	return out
}

func (r *registry) remove(id string) error {
	r.mu.Lock()
	e, ok := r.files[id]
	delete(r.files, id)
	r.mu.Unlock()
	if !ok {
		return nil
	}
	return r.fs.RemoveAll(path.Dir(e.img.Filename()))
}
