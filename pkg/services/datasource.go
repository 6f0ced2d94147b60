// Package services contains the engine's business logic: data source
// management, schema caching, SQL generation and the query pipeline.
package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumina-bi/lumina-engine/pkg/adapters/datasource"
	"github.com/lumina-bi/lumina-engine/pkg/apperrors"
	"github.com/lumina-bi/lumina-engine/pkg/crypto"
	"github.com/lumina-bi/lumina-engine/pkg/models"
	"github.com/lumina-bi/lumina-engine/pkg/repositories"
	enginesql "github.com/lumina-bi/lumina-engine/pkg/sql"
)

// CreateDataSourceRequest carries the fields for registering a data
// source. Password arrives in plaintext and is encrypted before it is
// stored.
type CreateDataSourceRequest struct {
	Name        string                `json:"name"`
	Description *string               `json:"description,omitempty"`
	Kind        models.DataSourceKind `json:"kind"`
	Host        *string               `json:"host,omitempty"`
	Port        *int                  `json:"port,omitempty"`
	Database    *string               `json:"database,omitempty"`
	Username    *string               `json:"username,omitempty"`
	Password    *string               `json:"password,omitempty"`
	FilePath    *string               `json:"file_path,omitempty"`
}

// UpdateDataSourceRequest carries a partial update. Nil fields are left
// unchanged.
type UpdateDataSourceRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Host        *string `json:"host,omitempty"`
	Port        *int    `json:"port,omitempty"`
	Database    *string `json:"database,omitempty"`
	Username    *string `json:"username,omitempty"`
	Password    *string `json:"password,omitempty"`
	FilePath    *string `json:"file_path,omitempty"`
	IsActive    *bool   `json:"is_active,omitempty"`
}

// ConnectionTestResult is the outcome of probing a data source.
type ConnectionTestResult struct {
	Success   bool     `json:"success"`
	Message   string   `json:"message"`
	LatencyMs *float64 `json:"latency_ms,omitempty"`
}

// DataSourceService manages data source records and connection testing.
type DataSourceService interface {
	Create(ctx context.Context, orgID uuid.UUID, req *CreateDataSourceRequest) (*models.DataSource, error)
	Get(ctx context.Context, orgID, id uuid.UUID) (*models.DataSource, error)
	List(ctx context.Context, orgID uuid.UUID) ([]*models.DataSource, error)
	Update(ctx context.Context, orgID, id uuid.UUID, req *UpdateDataSourceRequest) (*models.DataSource, error)
	Delete(ctx context.Context, orgID, id uuid.UUID) error

	// TestConnection probes a saved data source. It reports failures in
	// the result, not as an error.
	TestConnection(ctx context.Context, orgID, id uuid.UUID) (*ConnectionTestResult, error)

	// TestConnectionParams probes a connection built from request
	// parameters without touching any saved record.
	TestConnectionParams(ctx context.Context, req *CreateDataSourceRequest) (*ConnectionTestResult, error)
}

// defaultConnectionTimeout bounds connection probes when no timeout is
// configured.
const defaultConnectionTimeout = 10 * time.Second

type dataSourceService struct {
	repo        repositories.DataSourceRepository
	encryptor   *crypto.CredentialEncryptor
	factory     datasource.AdapterFactory
	connTimeout time.Duration
	logger      *zap.Logger
}

// NewDataSourceService creates the data source service. connTimeout
// bounds every connection probe; zero falls back to the default.
func NewDataSourceService(
	repo repositories.DataSourceRepository,
	encryptor *crypto.CredentialEncryptor,
	factory datasource.AdapterFactory,
	connTimeout time.Duration,
	logger *zap.Logger,
) DataSourceService {
	if connTimeout <= 0 {
		connTimeout = defaultConnectionTimeout
	}
	return &dataSourceService{
		repo:        repo,
		encryptor:   encryptor,
		factory:     factory,
		connTimeout: connTimeout,
		logger:      logger,
	}
}

var _ DataSourceService = (*dataSourceService)(nil)

func (s *dataSourceService) Create(ctx context.Context, orgID uuid.UUID, req *CreateDataSourceRequest) (*models.DataSource, error) {
	if req.Name == "" {
		return nil, fmt.Errorf("name is required")
	}
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedKind, req.Kind)
	}
	if err := screenConnectionParams(req.Host, req.Database, req.Username); err != nil {
		return nil, err
	}

	ds := &models.DataSource{
		Name:           req.Name,
		Description:    req.Description,
		Kind:           req.Kind,
		Host:           req.Host,
		Port:           req.Port,
		Database:       req.Database,
		Username:       req.Username,
		FilePath:       req.FilePath,
		IsActive:       true,
		OrganizationID: orgID,
	}

	if req.Password != nil {
		encrypted, err := s.encryptor.Encrypt(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt password: %w", err)
		}
		ds.EncryptedPassword = &encrypted
	}

	if err := s.repo.Create(ctx, ds); err != nil {
		return nil, err
	}

	s.logger.Info("data source created",
		zap.String("id", ds.ID.String()),
		zap.String("kind", string(ds.Kind)))
	return ds, nil
}

func (s *dataSourceService) Get(ctx context.Context, orgID, id uuid.UUID) (*models.DataSource, error) {
	return s.repo.GetByID(ctx, orgID, id)
}

func (s *dataSourceService) List(ctx context.Context, orgID uuid.UUID) ([]*models.DataSource, error) {
	return s.repo.List(ctx, orgID)
}

func (s *dataSourceService) Update(ctx context.Context, orgID, id uuid.UUID, req *UpdateDataSourceRequest) (*models.DataSource, error) {
	ds, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	if err := screenConnectionParams(req.Host, req.Database, req.Username); err != nil {
		return nil, err
	}

	connectionChanged := false
	if req.Name != nil {
		ds.Name = *req.Name
	}
	if req.Description != nil {
		ds.Description = req.Description
	}
	if req.Host != nil {
		ds.Host = req.Host
		connectionChanged = true
	}
	if req.Port != nil {
		ds.Port = req.Port
		connectionChanged = true
	}
	if req.Database != nil {
		ds.Database = req.Database
		connectionChanged = true
	}
	if req.Username != nil {
		ds.Username = req.Username
		connectionChanged = true
	}
	if req.FilePath != nil {
		ds.FilePath = req.FilePath
		connectionChanged = true
	}
	if req.Password != nil {
		encrypted, err := s.encryptor.Encrypt(*req.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to encrypt password: %w", err)
		}
		ds.EncryptedPassword = &encrypted
		connectionChanged = true
	}
	if req.IsActive != nil {
		ds.IsActive = *req.IsActive
	}

	// A connection change points us at a possibly different database, so
	// the cached schema no longer describes it.
	if connectionChanged {
		ds.SchemaCache = nil
	}

	if err := s.repo.Update(ctx, ds); err != nil {
		return nil, err
	}
	return ds, nil
}

func (s *dataSourceService) Delete(ctx context.Context, orgID, id uuid.UUID) error {
	return s.repo.Delete(ctx, orgID, id)
}

func (s *dataSourceService) TestConnection(ctx context.Context, orgID, id uuid.UUID) (*ConnectionTestResult, error) {
	ds, err := s.repo.GetByID(ctx, orgID, id)
	if err != nil {
		return nil, err
	}

	adapter, err := s.buildAdapter(ds)
	if err != nil {
		return &ConnectionTestResult{Success: false, Message: err.Error()}, nil
	}
	defer adapter.Close()

	return s.probe(ctx, adapter), nil
}

func (s *dataSourceService) TestConnectionParams(ctx context.Context, req *CreateDataSourceRequest) (*ConnectionTestResult, error) {
	if !req.Kind.Valid() {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedKind, req.Kind)
	}
	if err := screenConnectionParams(req.Host, req.Database, req.Username); err != nil {
		return nil, err
	}

	ds := &models.DataSource{
		Kind:     req.Kind,
		Host:     req.Host,
		Port:     req.Port,
		Database: req.Database,
		Username: req.Username,
		FilePath: req.FilePath,
	}
	password := ""
	if req.Password != nil {
		password = *req.Password
	}

	adapter, err := s.factory.NewAdapter(string(ds.Kind), adapterConfig(ds, password))
	if err != nil {
		return &ConnectionTestResult{Success: false, Message: err.Error()}, nil
	}
	defer adapter.Close()

	return s.probe(ctx, adapter), nil
}

// probe runs the adapter's connection test under the configured
// timeout, so an unresponsive host cannot hang the request.
func (s *dataSourceService) probe(ctx context.Context, adapter datasource.Adapter) *ConnectionTestResult {
	probeCtx, cancel := context.WithTimeout(ctx, s.connTimeout)
	defer cancel()

	ok, message, latency := adapter.TestConnection(probeCtx)
	return &ConnectionTestResult{Success: ok, Message: message, LatencyMs: latency}
}

func (s *dataSourceService) buildAdapter(ds *models.DataSource) (datasource.Adapter, error) {
	return buildAdapter(s.factory, s.encryptor, ds)
}

// buildAdapter decrypts the stored credential and instantiates the
// adapter for the data source's kind.
func buildAdapter(factory datasource.AdapterFactory, encryptor *crypto.CredentialEncryptor, ds *models.DataSource) (datasource.Adapter, error) {
	password := ""
	if ds.EncryptedPassword != nil {
		decrypted, err := encryptor.Decrypt(*ds.EncryptedPassword)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt credentials: %w", err)
		}
		password = decrypted
	}
	return factory.NewAdapter(string(ds.Kind), adapterConfig(ds, password))
}

// adapterConfig flattens a data source record into the generic config
// map adapter factories consume.
func adapterConfig(ds *models.DataSource, password string) map[string]any {
	cfg := map[string]any{}
	if ds.Host != nil {
		cfg["host"] = *ds.Host
	}
	if ds.Port != nil {
		cfg["port"] = *ds.Port
	}
	if ds.Database != nil {
		cfg["database"] = *ds.Database
	}
	if ds.Username != nil {
		cfg["username"] = *ds.Username
	}
	if ds.FilePath != nil {
		cfg["file_path"] = *ds.FilePath
	}
	if password != "" {
		cfg["password"] = password
	}
	return cfg
}

// screenConnectionParams refuses user-supplied connection parameters
// that look like SQL injection payloads. They get interpolated into
// DSNs and introspection queries downstream.
func screenConnectionParams(host, database, username *string) error {
	params := map[string]any{}
	if host != nil {
		params["host"] = *host
	}
	if database != nil {
		params["database"] = *database
	}
	if username != nil {
		params["username"] = *username
	}

	for _, result := range enginesql.CheckConnectionParams(params) {
		return fmt.Errorf("parameter %q rejected as a possible injection payload", result.ParamName)
	}
	return nil
}
