// File: internal/usecase/aggregate.go
package usecase

import (
	"sort"

	"classroom-ai-grading/internal/domain/model"
)

// Aggregate folds all per-file results into one result per student. It is a
// pure function: the same input set always yields the same output, whatever
// the input order.
func Aggregate(results []model.EvaluationResult) []model.AggregateResult {
	groups := make(map[model.StudentKey][]model.EvaluationResult)
	for _, r := range results {
		key := keyFor(r)
		groups[key] = append(groups[key], r)
	}

	out := make([]model.AggregateResult, 0, len(groups))
	for key, group := range groups {
		best := group[0]
		for _, r := range group[1:] {
			if outranks(r, best) {
				best = r
			}
		}

		folderSet := make(map[string]struct{})
		for _, r := range group {
			folderSet[r.Folder] = struct{}{}
		}
		folders := make([]string, 0, len(folderSet))
		for f := range folderSet {
			folders = append(folders, f)
		}
		sort.Strings(folders)

		contributing := append([]model.EvaluationResult(nil), group...)
		sort.Slice(contributing, func(i, j int) bool {
			return contributing[i].SourcePath < contributing[j].SourcePath
		})

		out = append(out, model.AggregateResult{
			Key:          key,
			Best:         best,
			Contributing: contributing,
			Folders:      folders,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if na, nb := model.NormalizeName(a.Best.Student), model.NormalizeName(b.Best.Student); na != nb {
			return na < nb
		}
		return a.Key < b.Key
	})
	return out
}

// keyFor derives the grouping key, preferring an ID token embedded in the
// recorded student name over one in the folder path.
func keyFor(r model.EvaluationResult) model.StudentKey {
	if _, id := model.ParseFolder(r.Student); id != "" {
		return model.StudentKey("id:" + id)
	}
	return model.DeriveStudentKey(r.Folder)
}

// outranks is the strict total order behind the selection rule: a pass beats
// any non-pass, later evaluations beat earlier ones, longer comments break
// timestamp ties, and the source path makes the order strict.
func outranks(a, b model.EvaluationResult) bool {
	ap, bp := a.Verdict == model.VerdictPass, b.Verdict == model.VerdictPass
	if ap != bp {
		return ap
	}
	if !a.CheckedAt.Equal(b.CheckedAt) {
		return a.CheckedAt.After(b.CheckedAt)
	}
	if len(a.Comment) != len(b.Comment) {
		return len(a.Comment) > len(b.Comment)
	}
	return a.SourcePath > b.SourcePath
}
