package pipeline

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// Bundle 把多个输出按顺序打成一个 ZIP。
// 条目不带时间戳，同一输入产生的归档字节一致。
func Bundle(outputs []Output) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := zip.NewWriter(buf)

	for _, out := range outputs {
		entry, err := w.Create(out.Filename)
		if err != nil {
			return nil, fmt.Errorf("create zip entry %s: %w", out.Filename, err)
		}
		if _, err := entry.Write(out.Data); err != nil {
			return nil, fmt.Errorf("write zip entry %s: %w", out.Filename, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}
