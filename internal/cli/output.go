package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/gosuri/uitable"
	"gopkg.in/yaml.v3"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// printer 按输出格式打印结果；table 格式由调用方提供表格
type printer struct {
	out    io.Writer
	format string
}

func (p printer) validate() error {
	switch p.format {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (table, json, yaml)", p.format)
}

func (p printer) print(v any, table func(t *uitable.Table)) error {
	switch p.format {
	case formatJSON:
		enc := json.NewEncoder(p.out)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(p.out)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	t := uitable.New()
	t.MaxColWidth = 80
	t.Wrap = true
	table(t)
	_, err := fmt.Fprintln(p.out, t.String())
	return err
}
