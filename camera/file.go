package camera

import (
	"path"

	"github.com/snksoft/crc"
)

var crcTable = crc.NewTable(crc.CRC32)

// File is a file on the camera, or a frame captured into memory.  Data is
// empty until the file is downloaded.
type File struct {
	Folder   string `json:"folder"`
	Name     string `json:"name"`
	MIMEType string `json:"mimetype,omitempty"`
	Data     []byte `json:"-"`
}

// NewFile returns a File located at folder/name with no data
func NewFile(folder, name string) *File {
	return &File{Folder: folder, Name: name}
}

// Path returns the path of the file on the camera
func (f *File) Path() string {
	return path.Join(f.Folder, f.Name)
}

// Checksum returns the CRC-32 of the data of the file
func (f *File) Checksum() uint32 {
	return uint32(crcTable.CalculateCRC(f.Data))
}

func (f *File) String() string {
	return f.Path()
}
