package util

import "fmt"

// Rows 将切片按固定宽度切成多行，长度不是 width 的整数倍时返回错误。
func Rows[T any](items []T, width int) ([][]T, error) {
	if width <= 0 {
		return nil, fmt.Errorf("行宽必须为正数: %d", width)
	}
	if len(items)%width != 0 {
		return nil, fmt.Errorf("共 %d 项，不是 %d 的整数倍", len(items), width)
	}
	rows := make([][]T, 0, len(items)/width)
	for start := 0; start < len(items); start += width {
		row := make([]T, width)
		copy(row, items[start:start+width])
		rows = append(rows, row)
	}
	return rows, nil
}
