package reconcile

import (
	"github.com/John-Robertt/ibdbwatch/internal/dataset"
	"github.com/John-Robertt/ibdbwatch/internal/domain"
)

// Result 是一次合并的结果。
type Result struct {
	// Merged = existing ++ fresh 按 DetailLink 去重（保留首次出现，已有记录优先）。
	Merged []domain.ShowRecord
	// Added = len(Merged) - len(existing)。
	Added int
	// New 是 fresh 中 DetailLink 不在（合并前的）existing 里的记录，保持原顺序。
	New []domain.ShowRecord
}

// Reconcile 是纯函数：不读写磁盘，只计算合并结果。
//
// 注意：New 基于合并前的 existing 键集合计算，与 fresh 内部是否重复无关；
// 因此 fresh 里同一新键出现两次时，两条都会出现在 New 中（Merged 只保留第一条）。
func Reconcile(existing, fresh []domain.ShowRecord) Result {
	known := make(map[string]struct{}, len(existing)+len(fresh))
	merged := make([]domain.ShowRecord, 0, len(existing)+len(fresh))

	for _, r := range existing {
		if _, ok := known[r.DetailLink]; ok {
			continue
		}
		known[r.DetailLink] = struct{}{}
		merged = append(merged, r)
	}
	base := len(merged)

	// existingKeys 是合并前的快照：在它之上判断“新”，而不是在不断增长的 known 上。
	existingKeys := make(map[string]struct{}, base)
	for k := range known {
		existingKeys[k] = struct{}{}
	}

	newRecs := make([]domain.ShowRecord, 0)
	for _, r := range fresh {
		if _, ok := existingKeys[r.DetailLink]; !ok {
			newRecs = append(newRecs, r)
		}
		if _, ok := known[r.DetailLink]; ok {
			continue
		}
		known[r.DetailLink] = struct{}{}
		merged = append(merged, r)
	}

	return Result{
		Merged: merged,
		Added:  len(merged) - base,
		New:    newRecs,
	}
}

// Reconciler 独占主数据集的合并与持久化：load -> Reconcile -> save（整体覆盖）。
//
// Merge 与 Commit 分开，调用方可以在落盘之前先写报告：
// 报告写失败时数据集保持不变，这些新记录在下一次 run 里仍然是“新”的。
type Reconciler struct {
	Store dataset.Store
}

// Merge 读取已有数据集并与 fresh 合并；不写盘。
func (r Reconciler) Merge(fresh []domain.ShowRecord) (Result, error) {
	existing, _, err := r.Store.Load()
	if err != nil {
		return Result{}, err
	}
	return Reconcile(existing, fresh), nil
}

// Commit 整体覆盖写入合并结果；失败时磁盘上的旧数据集保持不变。
func (r Reconciler) Commit(res Result) error {
	return r.Store.Save(res.Merged)
}

// Run = Merge + Commit；每次 run 只应调用一次。
func (r Reconciler) Run(fresh []domain.ShowRecord) (Result, error) {
	res, err := r.Merge(fresh)
	if err != nil {
		return Result{}, err
	}
	if err := r.Commit(res); err != nil {
		return Result{}, err
	}
	return res, nil
}
