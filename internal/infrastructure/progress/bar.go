package progress

import (
	"io"

	"github.com/schollz/progressbar/v3"

	"lungmask/internal/domain/port"
)

// NewFactory создаёт индикаторы, пишущие в w.
func NewFactory(w io.Writer) port.ProgressFactory {
	return func(total int, description string) port.Progress {
		return progressbar.NewOptions(total,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionSetWidth(30),
			progressbar.OptionClearOnFinish(),
		)
	}
}
