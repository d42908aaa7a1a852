package model

// 职位数据模型：列表页抓取得到的职位记录、标签记录，以及详情页回填相关的数据结构

import "time"

// Job 一条职位记录，ID由站点分配，其余字段除URL与ScrapedAt外均可能缺失
type Job struct {
	ID                 string
	Title              *string
	Company            *string
	Location           *string // 解析但不落库
	Rating             *float64
	Snippet            *string
	DescriptionVerbose *string // 只由回填流程写入
	ScrapedAt          time.Time
	URL                string
}

// Tag 职位的属性片段（合同类型、薪资等），以(JobID, Text)为唯一标识
type Tag struct {
	JobID string
	Text  string
}

// RawPage 一页渲染后的列表页内容
type RawPage struct {
	URL     string
	Content string
}

// DetailTarget 待回填描述的职位
type DetailTarget struct {
	ID  string
	URL string
}

// Description 详情页抓取结果，Text为nil表示描述容器不存在或页面加载失败
type Description struct {
	ID   string
	URL  string
	Text *string
}

// String 返回一个字符串指针，用于可选字段的赋值
func String(s string) *string {
	return &s
}

// Float 返回一个浮点数指针
func Float(f float64) *float64 {
	return &f
}
