package port

// Progress индикатор выполнения
type Progress interface {
	Add(n int) error
	Finish() error
}

// ProgressFactory создаёт индикатор на total шагов.
type ProgressFactory func(total int, description string) Progress
