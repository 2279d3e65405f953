package model

// RunStatistics aggregates one rule invocation. Values are combined with Add
// rather than mutated through shared pointers.
type RunStatistics struct {
	UsersProcessed  int `json:"users_processed"`
	FilesChecked    int `json:"files_checked"`
	FilesArchived   int `json:"files_archived"`
	FoldersArchived int `json:"folders_archived"`
	Deferred        int `json:"deferred"`
	Skipped         int `json:"skipped"`
	Failed          int `json:"failed"`
}

func (s RunStatistics) Add(other RunStatistics) RunStatistics {
	return RunStatistics{
		UsersProcessed:  s.UsersProcessed + other.UsersProcessed,
		FilesChecked:    s.FilesChecked + other.FilesChecked,
		FilesArchived:   s.FilesArchived + other.FilesArchived,
		FoldersArchived: s.FoldersArchived + other.FoldersArchived,
		Deferred:        s.Deferred + other.Deferred,
		Skipped:         s.Skipped + other.Skipped,
		Failed:          s.Failed + other.Failed,
	}
}

func (s RunStatistics) Archived() int {
	return s.FilesArchived + s.FoldersArchived
}
