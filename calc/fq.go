package calc

import (
	"github.com/jing2uo/tdxport/model"
)

// Adjuster 计算前收盘价与累计复权因子
//
// Index 为空时所有股票视为无除权事件；Previous 中存在的代码从上次的
// (date, close, factor) 续算，只输出日期晚于上次截止日的日线。
type Adjuster struct {
	Index    *ActionIndex
	Previous map[uint32]model.Factor
}

// xdxr 同一交易日合并后的除权除息参数
type xdxr struct {
	fenhong     float64 // 每 10 股派现
	peigu       float64 // 每 10 股配股
	peigujia    float64 // 配股价
	songzhuangu float64 // 每 10 股送转
}

func (x *xdxr) add(ev model.GbbqEvent) {
	x.fenhong += float64(ev.FhQltp)
	x.peigu += float64(ev.PgHzgb)
	x.songzhuangu += float64(ev.SgHltp)
	if ev.PgjQzgb > 0 {
		x.peigujia = float64(ev.PgjQzgb)
	}
}

// preClose A 股除权参考价
func (x *xdxr) preClose(prevClose float64) float64 {
	denominator := 10 + x.peigu + x.songzhuangu
	if denominator == 0 {
		return prevClose
	}
	p := (prevClose*10 - x.fenhong + x.peigu*x.peigujia) / denominator
	if p <= 0 {
		return prevClose
	}
	return p
}

// Adjust 处理一只股票按日期升序排列的日线
func (a *Adjuster) Adjust(code uint32, bars []model.DayBar) []model.AdjustedBar {
	events, _ := a.Index.EventsFor(code)
	seed, incremental := a.Previous[code]

	out := make([]model.AdjustedBar, 0, len(bars))
	var (
		prevClose float64
		prevDate  uint32
		factor    = 1.0
		started   bool
		ei        int
	)

	if incremental {
		prevClose = seed.Close
		prevDate = seed.Date
		if seed.Factor > 0 {
			factor = seed.Factor
		}
		started = true
	}

	for _, bar := range bars {
		if started && bar.Date <= prevDate {
			continue
		}

		if !started {
			// 首日之前 (含首日) 的事件无法体现在价格上
			for ei < len(events) && events[ei].Date <= bar.Date {
				ei++
			}
			out = append(out, model.AdjustedBar{DayBar: bar, Preclose: bar.Close, Factor: factor})
			if bar.Close > 0 {
				prevClose = bar.Close
			}
			prevDate = bar.Date
			started = true
			continue
		}

		var x xdxr
		hit := false
		for ei < len(events) && events[ei].Date <= bar.Date {
			ev := events[ei]
			ei++
			if ev.Date <= prevDate || ev.Category != model.CategoryXdxr {
				continue
			}
			x.add(ev)
			hit = true
		}

		preclose := prevClose
		switch {
		case prevClose == 0:
			preclose = bar.Close
		case hit:
			preclose = x.preClose(prevClose)
			factor *= prevClose / preclose
		}

		out = append(out, model.AdjustedBar{DayBar: bar, Preclose: preclose, Factor: factor})
		if bar.Close > 0 {
			prevClose = bar.Close
		}
		prevDate = bar.Date
	}

	return out
}
