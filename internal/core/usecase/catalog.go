package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/google/uuid"

	"github.com/kirillkom/compliance-auditor/internal/core/domain"
	"github.com/kirillkom/compliance-auditor/internal/core/ports"
)

// catalogNamespace derives stable ids for catalog entries that do not carry one.
var catalogNamespace = uuid.MustParse("6f1c2a3e-8d4b-4f6a-9c2e-5b7d1e0a4c3f")

type CatalogUseCase struct {
	decoder    ports.CatalogDecoder
	frameworks ports.FrameworkRepository
}

func NewCatalogUseCase(decoder ports.CatalogDecoder, frameworks ports.FrameworkRepository) *CatalogUseCase {
	return &CatalogUseCase{
		decoder:    decoder,
		frameworks: frameworks,
	}
}

// Import loads framework reference data. Only org admins may import.
func (uc *CatalogUseCase) Import(ctx context.Context, scope domain.Scope, r io.Reader) ([]domain.Framework, error) {
	if !scope.IsAdmin() {
		return nil, domain.WrapError(domain.ErrForbidden, "import catalog", errors.New("org admin role required"))
	}
	catalogs, err := uc.decoder.Decode(r)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "import catalog", err)
	}
	if len(catalogs) == 0 {
		return nil, domain.WrapError(domain.ErrInvalidInput, "import catalog", errors.New("catalog contains no frameworks"))
	}

	imported := make([]domain.Framework, 0, len(catalogs))
	for _, catalog := range catalogs {
		normalized, err := normalizeCatalog(catalog)
		if err != nil {
			return nil, domain.WrapError(domain.ErrInvalidInput, "import catalog", err)
		}
		if err := uc.frameworks.SaveCatalog(ctx, normalized); err != nil {
			return nil, fmt.Errorf("save framework %s: %w", normalized.Framework.Code, err)
		}
		imported = append(imported, normalized.Framework)
	}
	return imported, nil
}

func normalizeCatalog(catalog domain.FrameworkCatalog) (domain.FrameworkCatalog, error) {
	framework := catalog.Framework
	framework.Code = strings.TrimSpace(framework.Code)
	if framework.Code == "" {
		return domain.FrameworkCatalog{}, errors.New("framework code is required")
	}
	if strings.TrimSpace(framework.Name) == "" {
		framework.Name = framework.Code
	}
	if framework.ID == "" {
		framework.ID = uuid.NewSHA1(catalogNamespace, []byte("framework:"+framework.Code)).String()
	}

	seen := make(map[string]struct{}, len(catalog.Controls))
	controls := make([]domain.Control, 0, len(catalog.Controls))
	for _, control := range catalog.Controls {
		control.Code = strings.TrimSpace(control.Code)
		if control.Code == "" {
			return domain.FrameworkCatalog{}, fmt.Errorf("framework %s: control code is required", framework.Code)
		}
		if _, dup := seen[control.Code]; dup {
			return domain.FrameworkCatalog{}, fmt.Errorf("framework %s: duplicate control %s", framework.Code, control.Code)
		}
		seen[control.Code] = struct{}{}
		if control.ID == "" {
			control.ID = uuid.NewSHA1(catalogNamespace, []byte("control:"+framework.Code+":"+control.Code)).String()
		}
		control.FrameworkID = framework.ID
		if strings.TrimSpace(control.Title) == "" {
			control.Title = control.Code
		}
		if control.DefaultRiskLevel.Rank() == 0 {
			control.DefaultRiskLevel = domain.RiskMedium
		}
		controls = append(controls, control)
	}
	return domain.FrameworkCatalog{Framework: framework, Controls: controls}, nil
}
