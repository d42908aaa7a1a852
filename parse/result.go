package parse

import "github.com/dszqbsm/jobcrawler/model"

// Result 一次列表页解析的输出，职位按id去重、标签按(职位id, 标签)去重，均保留首次出现的记录
type Result struct {
	Jobs       []model.Job
	Tags       []model.Tag
	Malformed  int // 缺少有效id被跳过的卡片数
	BadRatings int // 评分无法解析而置空的卡片数
}
