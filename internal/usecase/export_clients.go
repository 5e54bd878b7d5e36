package usecase

import (
	"context"
	"errors"
	"io"
	"net/http"

	"go.uber.org/zap"

	"supportportal.io/portal/internal/changelog"
	"supportportal.io/portal/internal/domain"
	"supportportal.io/portal/internal/export"
	apperrors "supportportal.io/portal/internal/pkg/errors"
	"supportportal.io/portal/internal/pkg/logger"
)

// ExportSource reads what a client export needs.
type ExportSource interface {
	ListClientsByIDs(ctx context.Context, ids []int64) ([]*domain.Client, error)
	ActiveCustomFields(ctx context.Context) ([]*domain.CustomFieldDefinition, error)
	CustomFieldValuesFor(ctx context.Context, ids []int64) (map[int64]map[int64]string, error)
	RefNames(ctx context.Context) (changelog.RefNames, error)
}

// ExportClientsInput selects columns and clients. No ids exports every
// non-draft client.
type ExportClientsInput struct {
	Columns   []string `json:"columns"`
	ClientIDs []int64  `json:"client_ids"`
}

// ExportClientsUseCase renders client workbooks.
type ExportClientsUseCase struct {
	src ExportSource
}

// NewExportClientsUseCase creates a new ExportClientsUseCase.
func NewExportClientsUseCase(src ExportSource) *ExportClientsUseCase {
	return &ExportClientsUseCase{src: src}
}

// Columns lists the selectable columns including active custom fields.
func (uc *ExportClientsUseCase) Columns(ctx context.Context) ([]export.Column, error) {
	ex, err := uc.exporter(ctx)
	if err != nil {
		return nil, err
	}
	return ex.Available(), nil
}

// Execute writes the workbook to w and returns the number of exported clients.
// Unknown columns fail before anything is written.
func (uc *ExportClientsUseCase) Execute(ctx context.Context, input ExportClientsInput, w io.Writer) (int, error) {
	ex, err := uc.exporter(ctx)
	if err != nil {
		return 0, err
	}
	cols, err := ex.Resolve(input.Columns)
	if err != nil {
		var unknown *export.UnknownColumnError
		if errors.As(err, &unknown) {
			return 0, apperrors.BadRequest(apperrors.CodeValidationFailed, "unknown export column").
				WithParams(map[string]interface{}{"column": unknown.Key})
		}
		return 0, exportFailed(err)
	}

	clients, err := uc.src.ListClientsByIDs(ctx, input.ClientIDs)
	if err != nil {
		return 0, exportFailed(err)
	}
	values, err := uc.src.CustomFieldValuesFor(ctx, input.ClientIDs)
	if err != nil {
		return 0, exportFailed(err)
	}
	refs, err := uc.src.RefNames(ctx)
	if err != nil {
		return 0, exportFailed(err)
	}

	rows := make([]export.Row, len(clients))
	for i, c := range clients {
		custom := make(map[string]string, len(values[c.ID]))
		for fieldID, v := range values[c.ID] {
			custom[domain.CustomFieldKey(fieldID)] = v
		}
		rows[i] = export.Row{Client: c, Custom: custom}
	}

	if err := ex.Write(w, cols, rows, refs); err != nil {
		return 0, exportFailed(err)
	}
	logger.Info("Clients exported",
		zap.Int("clients", len(rows)),
		zap.Int("columns", len(cols)),
	)
	return len(rows), nil
}

func (uc *ExportClientsUseCase) exporter(ctx context.Context) (*export.Exporter, error) {
	defs, err := uc.src.ActiveCustomFields(ctx)
	if err != nil {
		return nil, exportFailed(err)
	}
	reg, err := changelog.ClientFields.With(changelog.CustomFieldSpecs(defs)...)
	if err != nil {
		return nil, exportFailed(err)
	}
	return export.New(reg), nil
}

func exportFailed(err error) error {
	if _, ok := apperrors.IsAppError(err); ok {
		return err
	}
	return apperrors.Wrap(err, apperrors.CodeExportFailed, "failed to build export", http.StatusInternalServerError)
}
