//go:build gphoto2

package gphoto

/*
#cgo pkg-config: libgphoto2
#include <stdint.h>
#include <stdlib.h>
#include <gphoto2/gphoto2.h>

void entangle_context_install(GPContext *ctx, uintptr_t handle);
*/
import "C"

import (
	"runtime/cgo"
	"time"
	"unsafe"
)

//export goProgressStart
func goProgressStart(h C.uintptr_t, target C.float, text *C.char) C.uint {
	ctx := cgo.Handle(h).Value().(*Context)
	return C.uint(ctx.start(float32(target), C.GoString(text)))
}

//export goProgressUpdate
func goProgressUpdate(h C.uintptr_t, id C.uint, current C.float) {
	ctx := cgo.Handle(h).Value().(*Context)
	ctx.update(uint(id), float32(current))
}

//export goProgressStop
func goProgressStop(h C.uintptr_t, id C.uint) {
	ctx := cgo.Handle(h).Value().(*Context)
	ctx.stop(uint(id))
}

//export goCancel
func goCancel(h C.uintptr_t) C.int {
	ctx := cgo.Handle(h).Value().(*Context)
	if ctx.cancelled() {
		return 1
	}
	return 0
}

// LibDriver binds libgphoto2.  The abilities and port lists are loaded once
// at construction.
type LibDriver struct {
	ctx       *C.GPContext
	abilities *C.CameraAbilitiesList
	ports     *C.GPPortInfoList
}

// NewLibDriver loads the camera drivers and port plugins known to libgphoto2
func NewLibDriver() (Driver, error) {
	d := &LibDriver{ctx: C.gp_context_new()}
	if err := Result(int(C.gp_abilities_list_new(&d.abilities))); err != nil {
		return nil, err
	}
	if err := Result(int(C.gp_abilities_list_load(d.abilities, d.ctx))); err != nil {
		return nil, err
	}
	if err := Result(int(C.gp_port_info_list_new(&d.ports))); err != nil {
		return nil, err
	}
	if err := Result(int(C.gp_port_info_list_load(d.ports))); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *LibDriver) portInfo(path string) (C.GPPortInfo, error) {
	var info C.GPPortInfo
	cpath := C.CString(path)
	defer C.free(unsafe.Pointer(cpath))
	idx := C.gp_port_info_list_lookup_path(d.ports, cpath)
	if idx < 0 {
		return info, Error(idx)
	}
	return info, Result(int(C.gp_port_info_list_get_info(d.ports, idx, &info)))
}

func (d *LibDriver) cabilities(model string) (C.CameraAbilities, error) {
	var a C.CameraAbilities
	cmodel := C.CString(model)
	defer C.free(unsafe.Pointer(cmodel))
	idx := C.gp_abilities_list_lookup_model(d.abilities, cmodel)
	if idx < 0 {
		return a, Error(idx)
	}
	return a, Result(int(C.gp_abilities_list_get_abilities(d.abilities, idx, &a)))
}

func (d *LibDriver) LookupPort(path string) (PortInfo, error) {
	info, err := d.portInfo(path)
	if err != nil {
		return PortInfo{}, err
	}
	var name, ppath *C.char
	C.gp_port_info_get_name(info, &name)
	C.gp_port_info_get_path(info, &ppath)
	return PortInfo{Name: C.GoString(name), Path: C.GoString(ppath)}, nil
}

func (d *LibDriver) LookupAbilities(model string) (Abilities, error) {
	a, err := d.cabilities(model)
	if err != nil {
		return Abilities{}, err
	}
	return Abilities{
		Model:      C.GoString(&a.model[0]),
		Operations: Operation(a.operations),
	}, nil
}

func (d *LibDriver) Open(a Abilities, p PortInfo, ctx *Context) (Device, error) {
	ca, err := d.cabilities(a.Model)
	if err != nil {
		return nil, err
	}
	info, err := d.portInfo(p.Path)
	if err != nil {
		return nil, err
	}
	dev := &libDevice{ctx: C.gp_context_new(), handle: cgo.NewHandle(ctx)}
	C.entangle_context_install(dev.ctx, C.uintptr_t(dev.handle))

	if err := Result(int(C.gp_camera_new(&dev.cam))); err != nil {
		dev.release()
		return nil, err
	}
	if err := Result(int(C.gp_camera_set_abilities(dev.cam, ca))); err != nil {
		dev.release()
		return nil, err
	}
	if err := Result(int(C.gp_camera_set_port_info(dev.cam, info))); err != nil {
		dev.release()
		return nil, err
	}
	if err := Result(int(C.gp_camera_init(dev.cam, dev.ctx))); err != nil {
		dev.release()
		return nil, err
	}
	return dev, nil
}

func (d *LibDriver) Detect() ([]Detected, error) {
	var list *C.CameraList
	if err := Result(int(C.gp_list_new(&list))); err != nil {
		return nil, err
	}
	defer C.gp_list_unref(list)
	if err := Result(int(C.gp_abilities_list_detect(d.abilities, d.ports, list, d.ctx))); err != nil {
		return nil, err
	}
	n := int(C.gp_list_count(list))
	out := make([]Detected, 0, n)
	for i := 0; i < n; i++ {
		var name, value *C.char
		C.gp_list_get_name(list, C.int(i), &name)
		C.gp_list_get_value(list, C.int(i), &value)
		out = append(out, Detected{Model: C.GoString(name), Port: C.GoString(value)})
	}
	return out, nil
}

type libDevice struct {
	cam    *C.Camera
	ctx    *C.GPContext
	handle cgo.Handle

	// configuration trees handed out by Config, freed on Close
	roots []*C.CameraWidget
}

func (d *libDevice) release() {
	for _, r := range d.roots {
		C.gp_widget_free(r)
	}
	d.roots = nil
	if d.cam != nil {
		C.gp_camera_unref(d.cam)
		d.cam = nil
	}
	if d.ctx != nil {
		C.gp_context_unref(d.ctx)
		d.ctx = nil
	}
	d.handle.Delete()
}

func (d *libDevice) Close() error {
	err := Result(int(C.gp_camera_exit(d.cam, d.ctx)))
	d.release()
	return err
}

func (d *libDevice) Capture() (CameraFilePath, error) {
	var path C.CameraFilePath
	if err := Result(int(C.gp_camera_capture(d.cam, C.GP_CAPTURE_IMAGE, &path, d.ctx))); err != nil {
		return CameraFilePath{}, err
	}
	return CameraFilePath{
		Folder: C.GoString(&path.folder[0]),
		Name:   C.GoString(&path.name[0]),
	}, nil
}

func (d *libDevice) CapturePreview() (*CameraFile, error) {
	var file *C.CameraFile
	if err := Result(int(C.gp_file_new(&file))); err != nil {
		return nil, err
	}
	defer C.gp_file_unref(file)
	if err := Result(int(C.gp_camera_capture_preview(d.cam, file, d.ctx))); err != nil {
		return nil, err
	}
	out := &CameraFile{}
	var name, mime *C.char
	if C.gp_file_get_name(file, &name) == C.GP_OK {
		out.Name = C.GoString(name)
	}
	if C.gp_file_get_mime_type(file, &mime) == C.GP_OK {
		out.MIMEType = C.GoString(mime)
	}
	data, err := fileData(file)
	out.Data = data
	return out, err
}

func fileData(file *C.CameraFile) ([]byte, error) {
	var data *C.char
	var size C.ulong
	if err := Result(int(C.gp_file_get_data_and_size(file, &data, &size))); err != nil {
		return nil, err
	}
	return C.GoBytes(unsafe.Pointer(data), C.int(size)), nil
}

func (d *libDevice) FetchFile(folder, name string) ([]byte, error) {
	var file *C.CameraFile
	if err := Result(int(C.gp_file_new(&file))); err != nil {
		return nil, err
	}
	defer C.gp_file_unref(file)
	cfolder, cname := C.CString(folder), C.CString(name)
	defer C.free(unsafe.Pointer(cfolder))
	defer C.free(unsafe.Pointer(cname))
	if err := Result(int(C.gp_camera_file_get(d.cam, cfolder, cname, C.GP_FILE_TYPE_NORMAL, file, d.ctx))); err != nil {
		return nil, err
	}
	return fileData(file)
}

func (d *libDevice) DeleteFile(folder, name string) error {
	cfolder, cname := C.CString(folder), C.CString(name)
	defer C.free(unsafe.Pointer(cfolder))
	defer C.free(unsafe.Pointer(cname))
	return Result(int(C.gp_camera_file_delete(d.cam, cfolder, cname, d.ctx)))
}

func (d *libDevice) WaitEvent(timeout time.Duration) (Event, error) {
	var typ C.CameraEventType
	var data unsafe.Pointer
	ms := C.int(timeout / time.Millisecond)
	if err := Result(int(C.gp_camera_wait_for_event(d.cam, ms, &typ, &data, d.ctx))); err != nil {
		return Event{}, err
	}
	defer C.free(data)
	ev := Event{Type: EventType(typ)}
	switch ev.Type {
	case EventFileAdded, EventFolderAdded:
		p := (*C.CameraFilePath)(data)
		ev.Path = CameraFilePath{Folder: C.GoString(&p.folder[0]), Name: C.GoString(&p.name[0])}
	}
	return ev, nil
}

func (d *libDevice) Config() (Widget, error) {
	var root *C.CameraWidget
	if err := Result(int(C.gp_camera_get_config(d.cam, &root, d.ctx))); err != nil {
		return nil, err
	}
	d.roots = append(d.roots, root)
	return libWidget{root}, nil
}

func (d *libDevice) SetConfig(root Widget) error {
	w, ok := root.(libWidget)
	if !ok {
		return ErrBadParameters
	}
	return Result(int(C.gp_camera_set_config(d.cam, w.w, d.ctx)))
}

func (d *libDevice) text(f func(*C.Camera, *C.CameraText, *C.GPContext) C.int) (string, error) {
	var txt C.CameraText
	if err := Result(int(f(d.cam, &txt, d.ctx))); err != nil {
		return "", err
	}
	return C.GoString(&txt.text[0]), nil
}

func (d *libDevice) Summary() (string, error) {
	return d.text(func(c *C.Camera, t *C.CameraText, x *C.GPContext) C.int { return C.gp_camera_get_summary(c, t, x) })
}

func (d *libDevice) Manual() (string, error) {
	return d.text(func(c *C.Camera, t *C.CameraText, x *C.GPContext) C.int { return C.gp_camera_get_manual(c, t, x) })
}

func (d *libDevice) About() (string, error) {
	return d.text(func(c *C.Camera, t *C.CameraText, x *C.GPContext) C.int { return C.gp_camera_get_about(c, t, x) })
}

// libWidget is a node of a tree owned by the libDevice that fetched it
type libWidget struct {
	w *C.CameraWidget
}

func (w libWidget) Type() (WidgetType, error) {
	var t C.CameraWidgetType
	err := Result(int(C.gp_widget_get_type(w.w, &t)))
	return WidgetType(t), err
}

func (w libWidget) str(f func(*C.CameraWidget, **C.char) C.int) (string, error) {
	var s *C.char
	if err := Result(int(f(w.w, &s))); err != nil {
		return "", err
	}
	return C.GoString(s), nil
}

func (w libWidget) Name() (string, error) {
	return w.str(func(c *C.CameraWidget, s **C.char) C.int { return C.gp_widget_get_name(c, s) })
}

func (w libWidget) Label() (string, error) {
	return w.str(func(c *C.CameraWidget, s **C.char) C.int { return C.gp_widget_get_label(c, s) })
}

func (w libWidget) Info() (string, error) {
	return w.str(func(c *C.CameraWidget, s **C.char) C.int { return C.gp_widget_get_info(c, s) })
}

func (w libWidget) ID() (int, error) {
	var id C.int
	err := Result(int(C.gp_widget_get_id(w.w, &id)))
	return int(id), err
}

func (w libWidget) ReadOnly() (bool, error) {
	var ro C.int
	err := Result(int(C.gp_widget_get_readonly(w.w, &ro)))
	return ro != 0, err
}

func (w libWidget) CountChildren() int {
	return int(C.gp_widget_count_children(w.w))
}

func (w libWidget) Child(i int) (Widget, error) {
	var c *C.CameraWidget
	if err := Result(int(C.gp_widget_get_child(w.w, C.int(i), &c))); err != nil {
		return nil, err
	}
	return libWidget{c}, nil
}

func (w libWidget) ChildByID(id int) (Widget, error) {
	var c *C.CameraWidget
	if err := Result(int(C.gp_widget_get_child_by_id(w.w, C.int(id), &c))); err != nil {
		return nil, err
	}
	return libWidget{c}, nil
}

func (w libWidget) CountChoices() int {
	return int(C.gp_widget_count_choices(w.w))
}

func (w libWidget) Choice(i int) (string, error) {
	var s *C.char
	if err := Result(int(C.gp_widget_get_choice(w.w, C.int(i), &s))); err != nil {
		return "", err
	}
	return C.GoString(s), nil
}

func (w libWidget) Range() (float32, float32, float32, error) {
	var min, max, step C.float
	err := Result(int(C.gp_widget_get_range(w.w, &min, &max, &step)))
	return float32(min), float32(max), float32(step), err
}

func (w libWidget) StringValue() (string, error) {
	var s *C.char
	if err := Result(int(C.gp_widget_get_value(w.w, unsafe.Pointer(&s)))); err != nil {
		return "", err
	}
	if s == nil {
		return "", nil
	}
	return C.GoString(s), nil
}

func (w libWidget) SetString(v string) error {
	cs := C.CString(v)
	defer C.free(unsafe.Pointer(cs))
	return Result(int(C.gp_widget_set_value(w.w, unsafe.Pointer(cs))))
}

func (w libWidget) FloatValue() (float32, error) {
	var f C.float
	err := Result(int(C.gp_widget_get_value(w.w, unsafe.Pointer(&f))))
	return float32(f), err
}

func (w libWidget) SetFloat(v float32) error {
	f := C.float(v)
	return Result(int(C.gp_widget_set_value(w.w, unsafe.Pointer(&f))))
}

func (w libWidget) IntValue() (int, error) {
	var i C.int
	err := Result(int(C.gp_widget_get_value(w.w, unsafe.Pointer(&i))))
	return int(i), err
}

func (w libWidget) SetInt(v int) error {
	i := C.int(v)
	return Result(int(C.gp_widget_set_value(w.w, unsafe.Pointer(&i))))
}
