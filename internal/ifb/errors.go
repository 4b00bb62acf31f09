package ifb

import "errors"

// 门户客户端对外暴露的错误类型，调用方通过 errors.Is 判断。
var (
	// ErrAuthTokenMissing 登录页没有下发 csrftoken cookie。
	ErrAuthTokenMissing = errors.New("登录页缺少 csrftoken")
	// ErrLoginRejected 登录后仍停留在登录页，通常是用户名或密码错误。
	ErrLoginRejected = errors.New("门户拒绝登录")
	// ErrNetwork 传输层失败或门户返回错误状态码。
	ErrNetwork = errors.New("门户请求失败")
	// ErrMalformedPage 页面结构与预期的表格布局不符。
	ErrMalformedPage = errors.New("页面结构异常")
	// ErrUnknownInstanceType 实例类型不在已知列表中。
	ErrUnknownInstanceType = errors.New("未知实例类型")
	// ErrUnknownAppliance 镜像不在门户提供的列表中。
	ErrUnknownAppliance = errors.New("未知镜像")
	// ErrUnknownDisk 按名称找不到磁盘。
	ErrUnknownDisk = errors.New("未知磁盘")
	// ErrInstanceNotFound 轮询耗尽后仍未找到实例。
	ErrInstanceNotFound = errors.New("实例不存在")
	// ErrInvalidArgument 互斥参数缺失或同时提供。
	ErrInvalidArgument = errors.New("参数错误")
)

// IsClientError 判断错误是否由调用方输入引起。
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrUnknownInstanceType) ||
		errors.Is(err, ErrUnknownAppliance) ||
		errors.Is(err, ErrUnknownDisk)
}
