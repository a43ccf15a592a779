package entity

import (
	"fmt"
	"strings"
)

// ModelName имя предобученной модели сегментации
type ModelName string

const (
	ModelR231          ModelName = "R231"           // Лёгкие целиком (правое/левое)
	ModelLTRCLobes     ModelName = "LTRCLobes"      // Доли лёгких
	ModelLTRCLobesR231 ModelName = "LTRCLobes_R231" // Доли с дозаполнением моделью R231
	ModelR231CovidWeb  ModelName = "R231CovidWeb"   // R231, дообученная на COVID-снимках
)

// DefaultModel модель по умолчанию.
const DefaultModel = ModelR231

// ModelNames возвращает список поддерживаемых моделей в порядке вывода справки.
func ModelNames() []ModelName {
	return []ModelName{ModelR231, ModelLTRCLobes, ModelLTRCLobesR231, ModelR231CovidWeb}
}

// ParseModelName проверяет, что имя модели входит в поддерживаемый набор.
func ParseModelName(s string) (ModelName, error) {
	for _, m := range ModelNames() {
		if string(m) == s {
			return m, nil
		}
	}
	names := make([]string, 0, 4)
	for _, m := range ModelNames() {
		names = append(names, string(m))
	}
	return "", fmt.Errorf("%w: %q (choose from %s)", ErrUnknownModel, s, strings.Join(names, ", "))
}

// ModelSpec описывает одну загружаемую модель.
type ModelSpec struct {
	Name    ModelName
	Classes int // число выходных каналов, включая фон
}

// Spec возвращает описание базовой модели. Для составной модели
// возвращается описание основной (долевой) модели.
func (m ModelName) Spec() ModelSpec {
	switch m {
	case ModelLTRCLobes, ModelLTRCLobesR231:
		return ModelSpec{Name: ModelLTRCLobes, Classes: 6}
	case ModelR231CovidWeb:
		return ModelSpec{Name: ModelR231CovidWeb, Classes: 3}
	default:
		return ModelSpec{Name: ModelR231, Classes: 3}
	}
}

// FillModel возвращает модель дозаполнения для составного варианта.
func (m ModelName) FillModel() (ModelSpec, bool) {
	if m == ModelLTRCLobesR231 {
		return ModelR231.Spec(), true
	}
	return ModelSpec{}, false
}

// IsComposite сообщает, собирается ли модель из двух.
func (m ModelName) IsComposite() bool {
	_, ok := m.FillModel()
	return ok
}
