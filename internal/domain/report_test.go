package domain

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"
)

func TestReport_Finalize_SortAndSummaryAndUTC(t *testing.T) {
	r := Report{
		Stage:      StageConvertImage,
		Root:       "/abs/root",
		StartedAt:  time.Date(2026, 2, 9, 10, 0, 0, 0, time.FixedZone("X", 8*3600)),
		FinishedAt: time.Date(2026, 2, 9, 10, 0, 1, 0, time.FixedZone("X", 8*3600)),
		Items: []ItemResult{
			{Src: "c.png", Status: ItemFailed, ErrorCode: ErrCodeDecode},
			{Src: "a.png", Status: ItemConverted},
			{Src: "b.txt", Status: ItemSkipped},
			{Src: "B.png", Status: ItemConverted},
		},
	}

	r.Finalize()

	// 字节序：大写字母排在小写之前。
	got := []string{r.Items[0].Src, r.Items[1].Src, r.Items[2].Src, r.Items[3].Src}
	want := []string{"B.png", "a.png", "b.txt", "c.png"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("items 排序不符合契约：%v", got)
		}
	}
	if r.Summary.Succeeded != 2 || r.Summary.Failed != 1 || r.Summary.Skipped != 1 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}
	if r.Status != StatusPartial {
		t.Fatalf("有失败条目时 status 应为 partial，实际 %q", r.Status)
	}

	b, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("json.Marshal 失败：%v", err)
	}
	if !bytes.Contains(b, []byte("\"started_at\":\"2026-02-09T02:00:00Z\"")) {
		t.Fatalf("started_at 不是 UTC RFC3339：%s", string(b))
	}
}

func TestReport_Finalize_FailKeepsStatus(t *testing.T) {
	r := Report{Stage: StageManifest}
	r.Fail(ErrCodeDuplicateBaseName, "dup")
	r.Finalize()
	if r.Status != StatusFailed || r.ErrorCode != ErrCodeDuplicateBaseName {
		t.Fatalf("Fail 之后 status/error_code 不应被覆盖：%+v", r)
	}
	if r.Items == nil {
		t.Fatalf("items 应为空切片而不是 nil（JSON 输出 [] 而不是 null）")
	}
}

func TestReport_Finalize_UnmatchedIsOnlyWarning(t *testing.T) {
	r := Report{Items: []ItemResult{
		{Src: "images/a.png", Dst: "annotations/a.png", Status: ItemPaired},
		{Src: "b", Status: ItemUnmatchedImage},
		{Src: "c", Status: ItemUnmatchedMask},
	}}
	r.Finalize()
	if !r.OK() {
		t.Fatalf("unmatched 只应是警告，实际 status=%q", r.Status)
	}
	if r.Summary.Pairs != 1 || r.Summary.UnmatchedImages != 1 || r.Summary.UnmatchedMasks != 1 {
		t.Fatalf("summary 统计不正确：%+v", r.Summary)
	}
}

func TestReport_Finalize_PendingMeansCanceled(t *testing.T) {
	r := Report{Items: []ItemResult{
		{Src: "a.png", Status: ItemConverted},
		{Src: "b.png", Status: ItemPending},
	}}
	r.Finalize()
	if r.Status != StatusCanceled {
		t.Fatalf("有 pending 条目时 status 应为 canceled，实际 %q", r.Status)
	}
}
