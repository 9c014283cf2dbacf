package result

import (
	"math"
	"math/big"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
)

func TestProperty_PagesCoverEveryRecordOnce(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100

	properties := gopter.NewProperties(parameters)

	properties.Property("concatenated pages reproduce the full list", prop.ForAll(
		func(total, pageSize int) bool {
			items := make([]any, total)
			for i := range items {
				items[i] = i
			}

			seen := 0
			for page := 1; ; page++ {
				out, err := Format(&lazyList{items: items}, page, pageSize)
				if err != nil {
					return false
				}
				p := out.(Page)
				data := p.Data.([]any)
				if p.TotalRecords != total || len(data) > pageSize {
					return false
				}
				if len(data) == 0 {
					break
				}
				for _, v := range data {
					if v.(int) != seen {
						return false
					}
					seen++
				}
			}
			return seen == total
		},
		gen.IntRange(0, 500),
		gen.IntRange(1, 60),
	))

	properties.TestingRun(t)
}

func TestProperty_PageWindowAcrossFullIntRange(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 300

	properties := gopter.NewProperties(parameters)
	positive := gen.OneGenOf(gen.IntRange(1, 5), gen.IntRange(1, math.MaxInt))

	properties.Property("any positive page and page size yield the exact window", prop.ForAll(
		func(total, page, pageSize int) bool {
			items := make([]int, total)
			for i := range items {
				items[i] = i
			}

			p, ok := Paginate(items, page, pageSize).(Page)
			if !ok || p.TotalRecords != total || p.Page != page || p.PageSize != pageSize {
				return false
			}
			data := p.Data.([]int)

			// 用大整数计算期望窗口
			start := new(big.Int).Mul(big.NewInt(int64(page-1)), big.NewInt(int64(pageSize)))
			end := new(big.Int).Add(start, big.NewInt(int64(pageSize)))
			n := big.NewInt(int64(total))
			if start.Cmp(n) > 0 {
				start.Set(n)
			}
			if end.Cmp(n) > 0 {
				end.Set(n)
			}
			want := int(end.Int64() - start.Int64())
			if len(data) != want {
				return false
			}
			return want == 0 || data[0] == int(start.Int64())
		},
		gen.IntRange(0, 300),
		positive,
		positive,
	))

	properties.TestingRun(t)
}
