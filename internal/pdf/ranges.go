package pdf

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/yourusername/tool-forge/internal/apierror"
)

// PageRange は分割対象のページ範囲を表します（Start/Endは1-based, End>=Start）。
type PageRange struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// planSplit は分割方法と値からページ範囲の一覧を求めます。
func planSplit(opts SplitOptions, pageCount int) ([]PageRange, error) {
	value := strings.TrimSpace(opts.Value)
	if value == "" {
		return nil, invalidInput("split_value を指定してください。")
	}
	switch opts.Type {
	case SplitTypeRanges:
		return parseRanges(value, pageCount)
	case SplitTypePages:
		return splitAfterPages(value, pageCount)
	case SplitTypeInterval:
		n, err := strconv.Atoi(value)
		if err != nil || n < 1 {
			return nil, invalidInput("interval には1以上の整数を指定してください。")
		}
		return splitEvery(n, pageCount), nil
	default:
		return nil, invalidInput(fmt.Sprintf("未対応の分割方法です: %s", opts.Type))
	}
}

// splitAfterPages は "2,5" のように指定されたページの直後で区切ります。
func splitAfterPages(expr string, pageCount int) ([]PageRange, error) {
	var ranges []PageRange
	start := 1
	for _, seg := range strings.Split(expr, ",") {
		page, err := pageNumber(seg)
		if err != nil {
			return nil, err
		}
		if page < start || page > pageCount {
			return nil, invalidInput("ページ番号は昇順かつページ数の範囲内で指定してください。")
		}
		ranges = append(ranges, PageRange{Start: start, End: page})
		start = page + 1
	}
	if start <= pageCount {
		ranges = append(ranges, PageRange{Start: start, End: pageCount})
	}
	return ranges, nil
}

func splitEvery(n, pageCount int) []PageRange {
	ranges := make([]PageRange, 0, (pageCount+n-1)/n)
	for start := 1; start <= pageCount; start += n {
		ranges = append(ranges, PageRange{Start: start, End: min(start+n-1, pageCount)})
	}
	return ranges
}

// parseRanges は "1-3,4-" 形式の指定を解釈します。範囲は昇順で重なってはいけません。
func parseRanges(expr string, pageCount int) ([]PageRange, error) {
	var ranges []PageRange
	last := 0
	for _, seg := range strings.Split(expr, ",") {
		pr, err := parseRange(strings.TrimSpace(seg), pageCount)
		if err != nil {
			return nil, err
		}
		if pr.Start <= last {
			return nil, invalidInput("ページ範囲は重ならないよう昇順で指定してください。")
		}
		ranges = append(ranges, pr)
		last = pr.End
	}
	return ranges, nil
}

// parseRange は "3", "2-5", "4-"（末尾まで）のいずれかを解釈します。
func parseRange(seg string, pageCount int) (PageRange, error) {
	if seg == "" {
		return PageRange{}, invalidInput("空の範囲指定が含まれています。")
	}
	head, tail, isRange := strings.Cut(seg, "-")
	start, err := pageNumber(head)
	if err != nil {
		return PageRange{}, err
	}
	end := start
	if isRange {
		end = pageCount
		if strings.TrimSpace(tail) != "" {
			if end, err = pageNumber(tail); err != nil {
				return PageRange{}, err
			}
		}
	}
	if start < 1 || end < start || end > pageCount {
		return PageRange{}, invalidInput(fmt.Sprintf("範囲 %s はページ数 (%d) の範囲外です。", seg, pageCount))
	}
	return PageRange{Start: start, End: end}, nil
}

func pageNumber(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, invalidInput("空のページ指定が含まれています。")
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, invalidInput(fmt.Sprintf("ページ番号 %q が整数ではありません。", raw))
	}
	return n, nil
}

// selection は pdfcpu のページ選択式を返します。
func (r PageRange) selection() []string {
	if r.Start == r.End {
		return []string{strconv.Itoa(r.Start)}
	}
	return []string{fmt.Sprintf("%d-%d", r.Start, r.End)}
}

func invalidInput(message string) *apierror.Error {
	return apierror.Validation("INVALID_INPUT", message)
}
