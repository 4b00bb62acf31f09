package ifb

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Credentials 门户登录凭据。
type Credentials struct {
	Username string
	Password string
}

// Disk 存储页中的一行。
type Disk struct {
	Name string `json:"name"`
	Size string `json:"size"`
	UUID string `json:"uuid"`
}

// Instance 实例表中的一条记录，IP 仅在运行中的实例上出现。
type Instance struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	Status       string `json:"status"`
	Appliance    string `json:"appliance"`
	CPUPercent   string `json:"cpu_percent"`
	CPU          string `json:"cpu"`
	Memory       string `json:"memory"`
	StorageCount string `json:"storage_count"`
	Storage      string `json:"storage"`
	IP           string `json:"ip,omitempty"`
}

// Appliance 门户下拉框中的一个镜像选项。
type Appliance struct {
	ID   int
	Name string
}

// ApplianceCatalog 镜像名称与 ID 的双向映射。
type ApplianceCatalog struct {
	byName map[string]int
	byID   map[int]string
}

// NewApplianceCatalog 按顺序构建目录，重复的名称或 ID 以最后一次出现为准。
func NewApplianceCatalog(options []Appliance) ApplianceCatalog {
	c := ApplianceCatalog{
		byName: make(map[string]int, len(options)),
		byID:   make(map[int]string, len(options)),
	}
	for _, opt := range options {
		if oldID, ok := c.byName[opt.Name]; ok {
			delete(c.byID, oldID)
		}
		if oldName, ok := c.byID[opt.ID]; ok {
			delete(c.byName, oldName)
		}
		c.byName[opt.Name] = opt.ID
		c.byID[opt.ID] = opt.Name
	}
	return c
}

// ID 按名称查找镜像 ID。
func (c ApplianceCatalog) ID(name string) (int, bool) {
	id, ok := c.byName[name]
	return id, ok
}

// Name 按 ID 反查镜像名称。
func (c ApplianceCatalog) Name(id int) (string, bool) {
	name, ok := c.byID[id]
	return name, ok
}

// Len 返回镜像数量。
func (c ApplianceCatalog) Len() int {
	return len(c.byName)
}

// Names 返回排序后的镜像名称。
func (c ApplianceCatalog) Names() []string {
	names := make([]string, 0, len(c.byName))
	for name := range c.byName {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Map 返回名称到 ID 的副本。
func (c ApplianceCatalog) Map() map[string]int {
	out := make(map[string]int, len(c.byName))
	for name, id := range c.byName {
		out[name] = id
	}
	return out
}

// MarshalJSON 以 name -> id 的对象输出。
func (c ApplianceCatalog) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.Map())
}

func (c ApplianceCatalog) describe() string {
	parts := make([]string, 0, len(c.byName))
	for _, name := range c.Names() {
		parts = append(parts, fmt.Sprintf("%s(%d)", name, c.byName[name]))
	}
	return strings.Join(parts, ", ")
}

// InstanceTypes 实例类型名称到门户表单编码的映射。
type InstanceTypes map[string]int

// DefaultInstanceTypes 返回门户当前使用的实例类型编码。
func DefaultInstanceTypes() InstanceTypes {
	return InstanceTypes{
		"c2.small":  9,
		"c2.large":  10,
		"c2.xlarge": 11,
		"c3.medium": 1,
		"c3.large":  2,
		"c3.xlarge": 3,
		"m1.medium": 6,
	}
}

// Names 返回排序后的类型名称。
func (t InstanceTypes) Names() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Code 返回实例类型的表单编码。
func (t InstanceTypes) Code(name string) (string, error) {
	code, ok := t[name]
	if !ok {
		return "", fmt.Errorf("%w: %q，可选: %s", ErrUnknownInstanceType, name, strings.Join(t.Names(), ", "))
	}
	return strconv.Itoa(code), nil
}
