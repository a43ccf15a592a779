package entity

import "errors"

// Ошибки предметной области. Проверяются через errors.Is.
var (
	// ErrInputNotFound входной путь не существует.
	ErrInputNotFound = errors.New("input not found")

	// ErrModelPathConflict путь к весам задан для составной модели.
	ErrModelPathConflict = errors.New("Modelpath can not be specified for LTRCLobes_R231 mode")

	// ErrUnknownModel модель не входит в поддерживаемый набор.
	ErrUnknownModel = errors.New("unknown model")

	// ErrInvalidOption недопустимое значение параметра запуска.
	ErrInvalidOption = errors.New("invalid option")

	// ErrUnsupportedFormat формат файла не поддерживается.
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrInvalidImage файл изображения повреждён или не читается.
	ErrInvalidImage = errors.New("invalid image")

	// ErrGeometryMismatch размеры маски и изображения не совпадают.
	ErrGeometryMismatch = errors.New("image geometry mismatch")

	// ErrModelUnavailable веса модели не найдены и не могут быть скачаны.
	ErrModelUnavailable = errors.New("model weights unavailable")

	// ErrHashMismatch скачанные веса не прошли проверку SHA-256.
	ErrHashMismatch = errors.New("model hash mismatch")
)
