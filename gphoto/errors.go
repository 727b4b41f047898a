package gphoto

import (
	"errors"
	"fmt"
)

var (
	// ErrWidgetType is returned when a value accessor does not match the type of the widget
	ErrWidgetType = errors.New("gphoto: value accessor does not match widget type")

	// ErrCodes maps libgphoto2 result codes to their names
	ErrCodes = map[Error]string{
		0:    "GP_OK",
		-1:   "GP_ERROR",
		-2:   "GP_ERROR_BAD_PARAMETERS",
		-3:   "GP_ERROR_NO_MEMORY",
		-4:   "GP_ERROR_LIBRARY",
		-5:   "GP_ERROR_UNKNOWN_PORT",
		-6:   "GP_ERROR_NOT_SUPPORTED",
		-7:   "GP_ERROR_IO",
		-8:   "GP_ERROR_FIXED_LIMIT_EXCEEDED",
		-10:  "GP_ERROR_TIMEOUT",
		-20:  "GP_ERROR_IO_SUPPORTED_SERIAL",
		-21:  "GP_ERROR_IO_SUPPORTED_USB",
		-31:  "GP_ERROR_IO_INIT",
		-34:  "GP_ERROR_IO_READ",
		-35:  "GP_ERROR_IO_WRITE",
		-37:  "GP_ERROR_IO_UPDATE",
		-41:  "GP_ERROR_IO_SERIAL_SPEED",
		-51:  "GP_ERROR_IO_USB_CLEAR_HALT",
		-52:  "GP_ERROR_IO_USB_FIND",
		-53:  "GP_ERROR_IO_USB_CLAIM",
		-60:  "GP_ERROR_IO_LOCK",
		-80:  "GP_ERROR_HAL",
		-102: "GP_ERROR_CORRUPTED_DATA",
		-103: "GP_ERROR_FILE_EXISTS",
		-105: "GP_ERROR_MODEL_NOT_FOUND",
		-107: "GP_ERROR_DIRECTORY_NOT_FOUND",
		-108: "GP_ERROR_FILE_NOT_FOUND",
		-109: "GP_ERROR_DIRECTORY_EXISTS",
		-110: "GP_ERROR_CAMERA_BUSY",
		-111: "GP_ERROR_PATH_NOT_ABSOLUTE",
		-112: "GP_ERROR_CANCEL",
		-113: "GP_ERROR_CAMERA_ERROR",
		-114: "GP_ERROR_OS_FAILURE",
		-115: "GP_ERROR_NO_SPACE",
	}
)

// Error is a libgphoto2 result code
type Error int

// Codes the rest of the module branches on
const (
	ErrGeneric       Error = -1
	ErrBadParameters Error = -2
	ErrUnknownPort   Error = -5
	ErrNotSupported  Error = -6
	ErrIO            Error = -7
	ErrTimeout       Error = -10
	ErrModelNotFound Error = -105
	ErrDirNotFound   Error = -107
	ErrFileNotFound  Error = -108
	ErrCameraBusy    Error = -110
	ErrCancel        Error = -112
)

func (e Error) Error() string {
	if s, ok := ErrCodes[e]; ok {
		return fmt.Sprintf("%d - %s", e, s)
	}
	return fmt.Sprintf("%d - UNKNOWN_ERROR_CODE", e)
}

// Result returns nil for non-negative result codes and an Error otherwise
func Result(code int) error {
	if code >= 0 {
		return nil
	}
	return Error(code)
}
