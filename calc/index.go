package calc

import (
	"sort"

	"github.com/jing2uo/tdxport/model"
)

type eventKey struct {
	code     uint32
	date     uint32
	category uint8
}

// ActionIndex 按代码分组的股本变迁事件，构建后只读，可并发读取
type ActionIndex struct {
	byCode map[uint32][]model.GbbqEvent
	total  int
}

// NewActionIndex 按 (code, date, category) 去重，先出现者保留，每只股票按日期稳定排序
func NewActionIndex(events []model.GbbqEvent) *ActionIndex {
	seen := make(map[eventKey]struct{}, len(events))
	byCode := make(map[uint32][]model.GbbqEvent)
	total := 0

	for _, ev := range events {
		k := eventKey{ev.Code, ev.Date, ev.Category}
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		byCode[ev.Code] = append(byCode[ev.Code], ev)
		total++
	}

	for _, list := range byCode {
		sort.SliceStable(list, func(i, j int) bool { return list[i].Date < list[j].Date })
	}

	return &ActionIndex{byCode: byCode, total: total}
}

// EventsFor 没有记录时返回 false，调用方按无除权处理
func (x *ActionIndex) EventsFor(code uint32) ([]model.GbbqEvent, bool) {
	if x == nil {
		return nil, false
	}
	list, ok := x.byCode[code]
	return list, ok
}

func (x *ActionIndex) Codes() int {
	if x == nil {
		return 0
	}
	return len(x.byCode)
}

func (x *ActionIndex) Len() int {
	if x == nil {
		return 0
	}
	return x.total
}
