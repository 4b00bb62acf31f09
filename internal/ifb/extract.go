package ifb

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"ifbcloud/pkg/util"
)

// ParseDocument 解析 HTML 页面。
func ParseDocument(body []byte) (*html.Node, error) {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: 解析 HTML 失败: %v", ErrMalformedPage, err)
	}
	return doc, nil
}

// Tokens 深度优先收集子树中的全部文本节点，保留原始空白，忽略注释。
func Tokens(n *html.Node) []string {
	var out []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			out = append(out, n.Data)
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return out
}

// ExtractDisks 从存储页抽取磁盘列表。
func ExtractDisks(doc *html.Node, layout DiskLayout) ([]Disk, error) {
	container := findElement(doc, func(n *html.Node) bool { return attr(n, "id") == layout.ContainerID })
	if container == nil {
		return nil, fmt.Errorf("%w: 找不到 #%s", ErrMalformedPage, layout.ContainerID)
	}
	body := findElement(container, func(n *html.Node) bool { return n.Data == "tbody" })
	if body == nil {
		return nil, fmt.Errorf("%w: #%s 下没有 tbody", ErrMalformedPage, layout.ContainerID)
	}
	return DisksFromTokens(Tokens(body), layout)
}

// DisksFromTokens 按列数把文本片段切分为磁盘记录。
func DisksFromTokens(tokens []string, layout DiskLayout) ([]Disk, error) {
	rows, err := util.Rows(tokens, len(layout.Columns))
	if err != nil {
		return nil, fmt.Errorf("%w: 磁盘表: %v", ErrMalformedPage, err)
	}
	disks := make([]Disk, 0, len(rows))
	for i, row := range rows {
		var d Disk
		for j, f := range layout.Columns {
			d.set(f, strings.TrimSpace(row[j]))
		}
		if d.Name == "" || d.UUID == "" {
			return nil, fmt.Errorf("%w: 磁盘表第 %d 行缺少名称或 UUID", ErrMalformedPage, i+1)
		}
		disks = append(disks, d)
	}
	return disks, nil
}

// ExtractInstances 从实例页抽取实例列表。
func ExtractInstances(doc *html.Node, layout InstanceLayout) ([]Instance, error) {
	table := findElement(doc, func(n *html.Node) bool {
		return n.Data == "table" && attr(n, "id") == layout.TableID
	})
	if table == nil {
		return nil, fmt.Errorf("%w: 找不到 table#%s", ErrMalformedPage, layout.TableID)
	}
	return InstancesFromTokens(Tokens(table), layout)
}

// InstancesFromTokens 按 InstanceLayout 的位置规则重建实例记录。
// 文本流结束时仍未遇到 IP 标记的记录按无 IP 输出。
func InstancesFromTokens(tokens []string, layout InstanceLayout) ([]Instance, error) {
	width := len(layout.Fields)
	if width == 0 || layout.SentinelPrefix == "" {
		return nil, fmt.Errorf("%w: 实例布局未配置字段或 IP 标记", ErrMalformedPage)
	}
	var (
		instances []Instance
		current   Instance
		collected int
		blank     = true
		header    = layout.HeaderSkip
	)
	for i, tok := range tokens {
		if i <= header {
			continue
		}
		if offset := i - header; offset <= width {
			current.set(layout.Fields[offset-1], strings.TrimSpace(tok))
			collected++
			if strings.TrimSpace(tok) != "" {
				blank = false
			}
			continue
		}
		if !strings.HasPrefix(tok, layout.SentinelPrefix) {
			continue
		}
		current.IP = strings.TrimSpace(strings.TrimPrefix(tok, layout.SentinelPrefix))
		if err := checkInstance(current, collected, width, len(instances)); err != nil {
			return nil, err
		}
		instances = append(instances, current)
		header += layout.TrailingSkip
		current, collected, blank = Instance{}, 0, true
	}
	switch {
	case collected == 0 || blank:
	case collected == width:
		if err := checkInstance(current, collected, width, len(instances)); err != nil {
			return nil, err
		}
		instances = append(instances, current)
	default:
		return nil, fmt.Errorf("%w: 实例表在第 %d 条记录中途结束 (%d/%d 个字段)", ErrMalformedPage, len(instances)+1, collected, width)
	}
	return instances, nil
}

func checkInstance(in Instance, collected, width, index int) error {
	if collected != width {
		return fmt.Errorf("%w: 实例表第 %d 条记录只有 %d/%d 个字段", ErrMalformedPage, index+1, collected, width)
	}
	if in.ID == "" {
		return fmt.Errorf("%w: 实例表第 %d 条记录缺少 ID", ErrMalformedPage, index+1)
	}
	return nil
}

// ExtractAppliances 解析镜像下拉框，跳过值不是数字的占位选项。
func ExtractAppliances(doc *html.Node, layout ApplianceLayout) ([]Appliance, error) {
	sel := findElement(doc, func(n *html.Node) bool {
		return n.Data == "select" && (attr(n, "name") == layout.SelectName || attr(n, "id") == layout.SelectName)
	})
	if sel == nil {
		return nil, fmt.Errorf("%w: 找不到镜像下拉框 %q", ErrMalformedPage, layout.SelectName)
	}
	var options []Appliance
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "option" {
			id, err := strconv.Atoi(strings.TrimSpace(attr(n, "value")))
			name := strings.TrimSpace(strings.Join(Tokens(n), ""))
			if err == nil && name != "" {
				options = append(options, Appliance{ID: id, Name: name})
			}
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(sel)
	return options, nil
}

func findElement(n *html.Node, match func(*html.Node) bool) *html.Node {
	if n == nil {
		return nil
	}
	if n.Type == html.ElementNode && match(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findElement(c, match); found != nil {
			return found
		}
	}
	return nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}
