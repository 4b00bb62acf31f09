package main

import (
	"encoding/json"
	"io"
)

// writeJSON 以两格缩进输出 JSON，对象的键按字典序排列。
func writeJSON(w io.Writer, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return err
	}
	data, err := json.MarshalIndent(generic, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}
