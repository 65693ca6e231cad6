package service

import (
	"errors"
	"fmt"

	"project_report_srv/internal/report"

	"github.com/gabriel-vasile/mimetype"
)

// ErrUnexpectedContent означает, что генератор вернул файл другого формата
var ErrUnexpectedContent = errors.New("unexpected report content")

// verifyContent сверяет сигнатуру файла с форматом отчета. Для xlsx достаточно
// распознать zip-контейнер: это родительский тип в дереве mimetype.
func verifyContent(format report.Format, data []byte) error {
	expected := format.ContentType()
	detected := mimetype.Detect(data)

	for m := mimetype.Lookup(expected); m != nil && m.Parent() != nil; m = m.Parent() {
		if detected.Is(m.String()) {
			return nil
		}
	}
	return fmt.Errorf("%w: expected %s, detected %s", ErrUnexpectedContent, expected, detected.String())
}
