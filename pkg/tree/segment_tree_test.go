package tree

import (
	"math"
	"testing"
)

func TestNewSegmentTreeRejectsInvalidSize(t *testing.T) {
	if _, err := NewSegmentTree(0); err == nil {
		t.Fatalf("大小为 0 应返回错误")
	}
	if _, err := NewSegmentTree(-5); err == nil {
		t.Fatalf("负数大小应返回错误")
	}
}

func TestRebuildAndTotalSum(t *testing.T) {
	st, err := NewSegmentTree(5)
	if err != nil {
		t.Fatalf("NewSegmentTree 返回错误: %v", err)
	}
	weights := []float64{1, 2, 3, 4, 5}
	if err := st.Rebuild(weights); err != nil {
		t.Fatalf("Rebuild 返回错误: %v", err)
	}
	if math.Abs(st.TotalSum()-15) > 1e-9 {
		t.Fatalf("总权重应为 15，实际 %f", st.TotalSum())
	}

	if err := st.Rebuild([]float64{1, 2}); err == nil {
		t.Fatalf("长度不匹配的权重数组应被拒绝")
	}
}

func TestUpdateAndQuery(t *testing.T) {
	st, _ := NewSegmentTree(4)
	st.Rebuild([]float64{1, 1, 1, 1})

	if err := st.Update(2, 5); err != nil {
		t.Fatalf("Update 返回错误: %v", err)
	}
	v, err := st.Query(2)
	if err != nil {
		t.Fatalf("Query 返回错误: %v", err)
	}
	if v != 5 {
		t.Fatalf("更新后索引 2 的权重应为 5，实际 %f", v)
	}
	if math.Abs(st.TotalSum()-8) > 1e-9 {
		t.Fatalf("更新后总权重应为 8，实际 %f", st.TotalSum())
	}

	if err := st.Update(4, 1); err == nil {
		t.Fatalf("越界更新应返回错误")
	}
	if _, err := st.Query(-1); err == nil {
		t.Fatalf("越界查询应返回错误")
	}
}

func TestFindLocatesWeightedIndex(t *testing.T) {
	st, _ := NewSegmentTree(4)
	st.Rebuild([]float64{10, 0, 5, 0})

	cases := []struct {
		value float64
		want  int
	}{
		{0, 0},
		{5, 0},
		{10, 0},
		{10.5, 2},
		{15, 2},
	}
	for _, tc := range cases {
		got, err := st.Find(tc.value)
		if err != nil {
			t.Fatalf("Find(%f) 返回错误: %v", tc.value, err)
		}
		if got != tc.want {
			t.Fatalf("Find(%f) 应返回 %d，实际 %d", tc.value, tc.want, got)
		}
	}

	if _, err := st.Find(16); err == nil {
		t.Fatalf("超出总权重的查找应返回错误")
	}
	if _, err := st.Find(-1); err == nil {
		t.Fatalf("负数查找应返回错误")
	}
}

func TestFindSkipsZeroWeightEntries(t *testing.T) {
	st, _ := NewSegmentTree(6)
	st.Rebuild([]float64{0, 0, 3, 0, 0, 0})

	for _, v := range []float64{0.5, 1.5, 3} {
		got, err := st.Find(v)
		if err != nil {
			t.Fatalf("Find(%f) 返回错误: %v", v, err)
		}
		if got != 2 {
			t.Fatalf("所有查找都应落在唯一的非零索引 2，实际 %d", got)
		}
	}
}
