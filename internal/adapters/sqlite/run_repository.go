package sqlite

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/packlint/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/packlint/internal/core/domain"
	"gorm.io/gorm"
)

type runModel struct {
	ID             string    `gorm:"column:id;primaryKey"`
	Root           string    `gorm:"column:root;not null"`
	NamespacesJSON string    `gorm:"column:namespaces_json;not null"`
	FileCount      int       `gorm:"column:file_count;not null"`
	FailedFiles    int       `gorm:"column:failed_files;not null"`
	ErrorCount     int       `gorm:"column:error_count;not null"`
	FoundErrors    bool      `gorm:"column:found_errors;not null"`
	StartedAt      time.Time `gorm:"column:started_at;not null"`
	FinishedAt     time.Time `gorm:"column:finished_at;not null"`
}

func (runModel) TableName() string {
	return "runs"
}

type runFileModel struct {
	ID          uint64 `gorm:"column:id;primaryKey;autoIncrement"`
	RunID       string `gorm:"column:run_id;not null"`
	Seq         int    `gorm:"column:seq;not null"`
	Namespace   string `gorm:"column:namespace;not null"`
	ContentType string `gorm:"column:content_type;not null"`
	Path        string `gorm:"column:path;not null"`
	ErrorCount  int    `gorm:"column:error_count;not null"`
}

func (runFileModel) TableName() string {
	return "run_files"
}

type runFileErrorModel struct {
	ID         uint64  `gorm:"column:id;primaryKey;autoIncrement"`
	FileID     uint64  `gorm:"column:file_id;not null"`
	Seq        int     `gorm:"column:seq;not null"`
	Path       string  `gorm:"column:path;not null"`
	ErrorKey   string  `gorm:"column:error_key;not null"`
	ParamsJSON string  `gorm:"column:params_json;not null"`
	Message    string  `gorm:"column:message;not null"`
	ValueJSON  *string `gorm:"column:value_json"`
}

func (runFileErrorModel) TableName() string {
	return "run_file_errors"
}

// RunRepository persists run reports.
type RunRepository struct {
	db *gormsqlite.DB
}

func NewRunRepository(db *gormsqlite.DB) *RunRepository {
	return &RunRepository{db: db}
}

func (r *RunRepository) Save(ctx context.Context, report domain.RunReport) error {
	summary := report.Summary()
	namespaces, err := json.Marshal(nonNil(report.Namespaces))
	if err != nil {
		return fmt.Errorf("marshal namespaces: %w", err)
	}
	run := runModel{
		ID:             report.ID,
		Root:           report.Root,
		NamespacesJSON: string(namespaces),
		FileCount:      summary.FileCount,
		FailedFiles:    summary.FailedFiles,
		ErrorCount:     summary.ErrorCount,
		FoundErrors:    report.FoundErrors,
		StartedAt:      report.StartedAt.UTC(),
		FinishedAt:     report.FinishedAt.UTC(),
	}

	return r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("insert run: %w", err)
		}
		for i, f := range report.Files {
			file := runFileModel{
				RunID:       report.ID,
				Seq:         i,
				Namespace:   f.Namespace,
				ContentType: f.ContentType,
				Path:        f.Path,
				ErrorCount:  len(f.Errors),
			}
			if err := tx.Create(&file).Error; err != nil {
				return fmt.Errorf("insert run file: %w", err)
			}
			if len(f.Errors) == 0 {
				continue
			}
			rows := make([]runFileErrorModel, 0, len(f.Errors))
			for j, e := range f.Errors {
				row, err := toErrorModel(file.ID, j, e)
				if err != nil {
					return err
				}
				rows = append(rows, row)
			}
			if err := tx.CreateInBatches(&rows, 200).Error; err != nil {
				return fmt.Errorf("insert run file errors: %w", err)
			}
		}
		return nil
	})
}

func (r *RunRepository) List(ctx context.Context, filter domain.RunFilter) ([]domain.RunSummary, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = -1
	}
	var models []runModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		q := tx.Model(&runModel{})
		if filter.Root != "" {
			q = q.Where("root = ?", filter.Root)
		}
		return q.Order("started_at DESC").Order("id").Limit(limit).Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	out := make([]domain.RunSummary, 0, len(models))
	for _, m := range models {
		out = append(out, toSummary(m))
	}
	return out, nil
}

func (r *RunRepository) Get(ctx context.Context, id string) (domain.RunReport, error) {
	var (
		run    runModel
		files  []runFileModel
		errRow []runFileErrorModel
	)
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Where("id = ?", id).First(&run).Error; err != nil {
			return err
		}
		if err := tx.Where("run_id = ?", id).Order("seq").Find(&files).Error; err != nil {
			return err
		}
		if len(files) == 0 {
			return nil
		}
		ids := make([]uint64, len(files))
		for i, f := range files {
			ids[i] = f.ID
		}
		return tx.Where("file_id IN ?", ids).Order("file_id").Order("seq").Find(&errRow).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.RunReport{}, domain.ErrNotFound
		}
		return domain.RunReport{}, fmt.Errorf("get run: %w", err)
	}

	byFile := make(map[uint64][]domain.ErrorEntry, len(files))
	for _, e := range errRow {
		entry, err := toErrorEntry(e)
		if err != nil {
			return domain.RunReport{}, err
		}
		byFile[e.FileID] = append(byFile[e.FileID], entry)
	}

	report := domain.RunReport{
		ID:          run.ID,
		Root:        run.Root,
		FoundErrors: run.FoundErrors,
		StartedAt:   run.StartedAt,
		FinishedAt:  run.FinishedAt,
	}
	if err := json.Unmarshal([]byte(run.NamespacesJSON), &report.Namespaces); err != nil {
		return domain.RunReport{}, fmt.Errorf("decode namespaces: %w", err)
	}
	for _, f := range files {
		report.Files = append(report.Files, domain.FileResult{
			Namespace:   f.Namespace,
			ContentType: f.ContentType,
			Path:        f.Path,
			Errors:      byFile[f.ID],
		})
	}
	return report, nil
}

func toSummary(m runModel) domain.RunSummary {
	return domain.RunSummary{
		ID:          m.ID,
		Root:        m.Root,
		FileCount:   m.FileCount,
		FailedFiles: m.FailedFiles,
		ErrorCount:  m.ErrorCount,
		FoundErrors: m.FoundErrors,
		StartedAt:   m.StartedAt,
		FinishedAt:  m.FinishedAt,
	}
}

func toErrorModel(fileID uint64, seq int, e domain.ErrorEntry) (runFileErrorModel, error) {
	params, err := json.Marshal(nonNil(e.Params))
	if err != nil {
		return runFileErrorModel{}, fmt.Errorf("marshal params: %w", err)
	}
	row := runFileErrorModel{
		FileID:     fileID,
		Seq:        seq,
		Path:       e.Path,
		ErrorKey:   e.Key,
		ParamsJSON: string(params),
		Message:    e.Message,
	}
	if len(e.Value) > 0 {
		v := string(e.Value)
		row.ValueJSON = &v
	}
	return row, nil
}

func toErrorEntry(m runFileErrorModel) (domain.ErrorEntry, error) {
	entry := domain.ErrorEntry{
		Path:    m.Path,
		Key:     m.ErrorKey,
		Message: m.Message,
	}
	if err := json.Unmarshal([]byte(m.ParamsJSON), &entry.Params); err != nil {
		return domain.ErrorEntry{}, fmt.Errorf("decode params: %w", err)
	}
	if m.ValueJSON != nil {
		entry.Value = json.RawMessage(*m.ValueJSON)
	}
	return entry, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
