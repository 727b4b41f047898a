package gphoto_test

import (
	"fmt"
	"testing"

	"github.com/cicerolneto/entangle/gphoto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ExampleError() {
	fmt.Println(gphoto.ErrCameraBusy)
	fmt.Println(gphoto.Error(-999))
	// Output:
	// -110 - GP_ERROR_CAMERA_BUSY
	// -999 - UNKNOWN_ERROR_CODE
}

func ExampleWidgetType_String() {
	fmt.Println(gphoto.WidgetMenu, gphoto.WidgetDate)
	// Output: menu date
}

func TestResultNilOnSuccess(t *testing.T) {
	assert.NoError(t, gphoto.Result(0))
	assert.NoError(t, gphoto.Result(12))
	assert.Equal(t, gphoto.ErrIO, gphoto.Result(-7))
}

func TestOperationHas(t *testing.T) {
	ops := gphoto.OperationCaptureImage | gphoto.OperationConfig
	assert.True(t, ops.Has(gphoto.OperationConfig))
	assert.False(t, ops.Has(gphoto.OperationCapturePreview))
}

func TestMockWidgetChildByIDSearchesDescendants(t *testing.T) {
	root := gphoto.DefaultMockConfig()
	w, err := root.ChildByID(12)
	require.NoError(t, err)
	name, _ := w.Name()
	assert.Equal(t, "exposurecompensation", name)

	_, err = root.ChildByID(999)
	assert.Error(t, err)
}

func TestMockWidgetValueAccessorsCheckType(t *testing.T) {
	w := gphoto.NewMockWidget(gphoto.WidgetToggle, 1, "t", "T")
	_, err := w.StringValue()
	assert.ErrorIs(t, err, gphoto.ErrWidgetType)
	require.NoError(t, w.SetInt(1))
	v, err := w.IntValue()
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

func TestMockDeviceConfigIsACopy(t *testing.T) {
	dev := gphoto.NewMockDevice()
	cfg, err := dev.Config()
	require.NoError(t, err)
	w, err := cfg.ChildByID(9)
	require.NoError(t, err)
	require.NoError(t, w.SetString("800"))

	// untouched until written back
	orig, _ := dev.Root.ChildByID(9)
	v, _ := orig.StringValue()
	assert.Equal(t, "100", v)

	require.NoError(t, dev.SetConfig(cfg))
	v, _ = orig.StringValue()
	assert.Equal(t, "800", v)
	assert.Equal(t, 1, dev.CallCount(gphoto.OpSetConfig))
}

func TestMockDeviceEventsThenTimeout(t *testing.T) {
	dev := gphoto.NewMockDevice()
	dev.Queue(gphoto.Event{Type: gphoto.EventFolderAdded})
	ev, err := dev.WaitEvent(0)
	require.NoError(t, err)
	assert.Equal(t, gphoto.EventFolderAdded, ev.Type)
	ev, err = dev.WaitEvent(0)
	require.NoError(t, err)
	assert.Equal(t, gphoto.EventTimeout, ev.Type)
}

func TestMockCaptureHonorsCancel(t *testing.T) {
	drv := gphoto.NewMockDriver()
	var started, stopped int
	ctx := &gphoto.Context{
		ProgressStart: func(target float32, msg string) uint { started++; return 7 },
		ProgressStop:  func(id uint) { stopped++ },
		Cancel:        func() gphoto.Feedback { return gphoto.FeedbackCancel },
	}
	dev, err := drv.Open(drv.Models[0], drv.Ports[0], ctx)
	require.NoError(t, err)
	_, err = dev.Capture()
	assert.Equal(t, gphoto.ErrCancel, err)
	assert.Equal(t, 1, started)
	assert.Equal(t, 1, stopped)
}

func TestMockCaptureThenFetchAndDelete(t *testing.T) {
	drv := gphoto.NewMockDriver()
	dev, err := drv.Open(drv.Models[0], drv.Ports[0], nil)
	require.NoError(t, err)
	p, err := dev.Capture()
	require.NoError(t, err)
	data, err := dev.FetchFile(p.Folder, p.Name)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
	require.NoError(t, dev.DeleteFile(p.Folder, p.Name))
	_, err = dev.FetchFile(p.Folder, p.Name)
	assert.Equal(t, gphoto.ErrFileNotFound, err)
}

func TestMockDriverLookups(t *testing.T) {
	drv := gphoto.NewMockDriver()
	_, err := drv.LookupPort("serial:/dev/ttyS0")
	assert.Equal(t, gphoto.ErrUnknownPort, err)
	_, err = drv.LookupAbilities("Nikon D90")
	assert.Equal(t, gphoto.ErrModelNotFound, err)
	cams, err := drv.Detect()
	require.NoError(t, err)
	require.Len(t, cams, 1)
	assert.Equal(t, "Mock Camera", cams[0].Model)
}
