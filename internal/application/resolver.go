package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"lungmask/internal/domain/entity"
)

// CheckInput проверяет, что входной путь существует.
func CheckInput(path string) error {
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: %s", entity.ErrInputNotFound, path)
		}
		return err
	}
	return nil
}

// ResolveSamples сопоставляет входной путь с набором образцов.
// Для каталога создаётся выходной каталог, каждый файл верхнего уровня
// становится образцом с тем же именем в выходном каталоге.
// Для файла возвращается ровно один образец с выходным путём как есть.
func ResolveSamples(input, output string) (samples []entity.Sample, dirMode bool, err error) {
	info, err := os.Stat(input)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, fmt.Errorf("%w: %s", entity.ErrInputNotFound, input)
		}
		return nil, false, err
	}

	if !info.IsDir() {
		return []entity.Sample{{Input: input, Output: output}}, false, nil
	}

	if err := os.MkdirAll(output, 0o755); err != nil {
		return nil, true, fmt.Errorf("create output directory: %w", err)
	}

	entries, err := os.ReadDir(input)
	if err != nil {
		return nil, true, fmt.Errorf("list %s: %w", input, err)
	}

	samples = make([]entity.Sample, 0, len(entries))
	for _, e := range entries {
		path := filepath.Join(input, e.Name())
		// os.Stat следует по символическим ссылкам
		fi, err := os.Stat(path)
		if err != nil {
			return nil, true, fmt.Errorf("stat %s: %w", path, err)
		}
		if fi.IsDir() {
			continue
		}
		samples = append(samples, entity.Sample{Input: path, Output: filepath.Join(output, e.Name())})
	}
	return samples, true, nil
}
