package ifb

// Field 表格中一列对应的记录字段。
type Field string

const (
	FieldID           Field = "id"
	FieldName         Field = "name"
	FieldStatus       Field = "status"
	FieldAppliance    Field = "appliance"
	FieldCPUPercent   Field = "cpu_percent"
	FieldCPU          Field = "cpu"
	FieldMemory       Field = "memory"
	FieldStorageCount Field = "storage_count"
	FieldStorage      Field = "storage"
	FieldSize         Field = "size"
	FieldUUID         Field = "uuid"
)

// DiskLayout 存储页磁盘表的抽取规则：容器下的文本按 len(Columns) 个一组切分。
type DiskLayout struct {
	ContainerID string
	Columns     []Field
}

// InstanceLayout 实例表的抽取规则。
//
// 下标不超过 HeaderSkip 的文本片段被跳过，下标 HeaderSkip+k (k 从 1 开始)
// 对应 Fields[k-1]。字段收齐后继续扫描，直到遇到以 SentinelPrefix 开头的片段，
// 其后缀即实例 IP，随后 HeaderSkip 增加 TrailingSkip 进入下一条记录。
type InstanceLayout struct {
	TableID        string
	HeaderSkip     int
	Fields         []Field
	SentinelPrefix string
	TrailingSkip   int
}

// ApplianceLayout 镜像下拉框的位置。
type ApplianceLayout struct {
	SelectName string
}

// Layout 门户页面布局的版本化描述，页面改版时只需要更新这里。
type Layout struct {
	Version    string
	Disks      DiskLayout
	Instances  InstanceLayout
	Appliances ApplianceLayout
}

// DefaultLayout 返回当前门户页面的布局。
func DefaultLayout() Layout {
	return Layout{
		Version: "ifb-cloud-2017",
		Disks: DiskLayout{
			ContainerID: "storages",
			Columns:     []Field{FieldName, FieldSize, FieldUUID},
		},
		Instances: InstanceLayout{
			TableID:    "instances",
			HeaderSkip: 12,
			Fields: []Field{
				FieldID,
				FieldName,
				FieldStatus,
				FieldAppliance,
				FieldCPUPercent,
				FieldCPU,
				FieldMemory,
				FieldStorageCount,
				FieldStorage,
			},
			SentinelPrefix: "host = ",
			TrailingSkip:   27,
		},
		Appliances: ApplianceLayout{SelectName: "appliance"},
	}
}

func (d *Disk) set(f Field, v string) {
	switch f {
	case FieldName:
		d.Name = v
	case FieldSize:
		d.Size = v
	case FieldUUID:
		d.UUID = v
	}
}

func (in *Instance) set(f Field, v string) {
	switch f {
	case FieldID:
		in.ID = v
	case FieldName:
		in.Name = v
	case FieldStatus:
		in.Status = v
	case FieldAppliance:
		in.Appliance = v
	case FieldCPUPercent:
		in.CPUPercent = v
	case FieldCPU:
		in.CPU = v
	case FieldMemory:
		in.Memory = v
	case FieldStorageCount:
		in.StorageCount = v
	case FieldStorage:
		in.Storage = v
	}
}
