package assets

import (
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"patrimony/internal/repository"
	"patrimony/internal/valuation"
	"patrimony/pkg/apperrors"
	"patrimony/pkg/metadata"
	"patrimony/pkg/models"
)

type MockAssetRepository struct {
	mock.Mock
}

func (m *MockAssetRepository) GetAsset(id int) (*models.Asset, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Asset), args.Error(1)
}

func (m *MockAssetRepository) FindAssetByCode(code string) (*models.Asset, error) {
	args := m.Called(code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Asset), args.Error(1)
}

func (m *MockAssetRepository) GetAssetForUpdate(tx *goqu.TxDatabase, id int) (*models.Asset, error) {
	args := m.Called(tx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Asset), args.Error(1)
}

func (m *MockAssetRepository) GetAssetsBy(conditions repository.QueryBuilder) ([]models.Asset, error) {
	args := m.Called(conditions)
	return args.Get(0).([]models.Asset), args.Error(1)
}

func (m *MockAssetRepository) CodeExists(code string) (bool, error) {
	args := m.Called(code)
	return args.Bool(0), args.Error(1)
}

func (m *MockAssetRepository) LastSequence(tx *goqu.TxDatabase, seriesPrefix string) (int, error) {
	args := m.Called(tx, seriesPrefix)
	return args.Int(0), args.Error(1)
}

func (m *MockAssetRepository) InsertAsset(tx *goqu.TxDatabase, asset *models.Asset) (int, error) {
	args := m.Called(tx, asset)
	return args.Int(0), args.Error(1)
}

func (m *MockAssetRepository) UpdateAsset(tx *goqu.TxDatabase, id int, fields goqu.Record) error {
	args := m.Called(tx, id, fields)
	return args.Error(0)
}

func (m *MockAssetRepository) InsertValuationRecord(tx *goqu.TxDatabase, record models.ValuationRecord) (int, error) {
	args := m.Called(tx, record)
	return args.Int(0), args.Error(1)
}

func (m *MockAssetRepository) GetValuationHistory(assetID int) ([]models.ValuationRecord, error) {
	args := m.Called(assetID)
	return args.Get(0).([]models.ValuationRecord), args.Error(1)
}

func (m *MockAssetRepository) InsertMovement(tx *goqu.TxDatabase, movement models.Movement) (int, error) {
	args := m.Called(tx, movement)
	return args.Int(0), args.Error(1)
}

func (m *MockAssetRepository) GetMovements(assetID int) ([]models.Movement, error) {
	args := m.Called(assetID)
	return args.Get(0).([]models.Movement), args.Error(1)
}

func (m *MockAssetRepository) FindAtRisk(now time.Time, valueThreshold decimal.Decimal) ([]models.Asset, error) {
	args := m.Called(now, valueThreshold)
	return args.Get(0).([]models.Asset), args.Error(1)
}

type MockCustodyCloser struct {
	mock.Mock
}

func (m *MockCustodyCloser) CloseAllOpenTx(tx *goqu.TxDatabase, assetID int, effectiveDate time.Time) error {
	args := m.Called(tx, assetID, effectiveDate)
	return args.Error(0)
}

func (m *MockCustodyCloser) CloseOpenForUnitTx(tx *goqu.TxDatabase, assetID, unitID int, effectiveDate time.Time) error {
	args := m.Called(tx, assetID, unitID, effectiveDate)
	return args.Error(0)
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(fn func(tx *goqu.TxDatabase) error) error {
	return fn(nil)
}

type stubCatalog struct {
	categories *models.CategoryArena
	units      *models.OrgUnitArena
}

func (s stubCatalog) Categories() (*models.CategoryArena, error) { return s.categories, nil }
func (s stubCatalog) Units() (*models.OrgUnitArena, error)       { return s.units, nil }

type stubPermissions struct {
	allowed bool
}

func (s stubPermissions) HasPermission(actor, action string, assetID int) bool {
	return s.allowed
}

type recordingNotifier struct {
	events   []string
	payloads []map[string]interface{}
}

func (n *recordingNotifier) Notify(eventType string, payload map[string]interface{}) {
	n.events = append(n.events, eventType)
	n.payloads = append(n.payloads, payload)
}

func testCatalog() stubCatalog {
	return stubCatalog{
		categories: models.NewCategoryArena(
			[]models.Category{{ID: 1, Code: "MOB", Name: "Mobilier", Active: true}},
			[]models.Subcategory{
				{ID: 10, CategoryID: 1, Code: "INFO", Name: "Informatique", DefaultDurationMonths: intPtr(48)},
				{ID: 11, CategoryID: 1, Code: "VEHI", Name: "Vehicules", Critical: true},
			},
		),
		units: models.NewOrgUnitArena([]models.OrgUnit{
			{ID: 1, Code: "DG", Name: "Direction Generale", Active: true},
			{ID: 2, Code: "DSI", Name: "Direction des Systemes", Active: true},
		}),
	}
}

func intPtr(v int) *int { return &v }

func newTestService(repo *MockAssetRepository, custody *MockCustodyCloser, perms stubPermissions, notifier *recordingNotifier) *Service {
	return NewService(
		repo,
		testCatalog(),
		custody,
		perms,
		notifier,
		nil,
		stubTxRunner{},
		zap.NewNop(),
		"OPRAG",
		valuation.MethodLinear,
	)
}

func sampleAsset() *models.Asset {
	return &models.Asset{
		ID:               7,
		Code:             "OPRAG-2022-INFO-00007",
		Name:             "Serveur de stockage",
		Category:         models.Category{ID: 1, Code: "MOB"},
		Subcategory:      models.Subcategory{ID: 10, Code: "INFO"},
		Unit:             models.OrgUnit{ID: 1, Code: "DG"},
		AcquisitionValue: decimal.NewFromInt(1_000_000),
		Currency:         "XAF",
		AcquisitionDate:  time.Date(2022, 6, 1, 0, 0, 0, 0, time.UTC),
		ResidualValue:    decimal.Zero,
		Status:           metadata.StatusActive,
		Condition:        metadata.ConditionGood,
		CurrentValue:     decimal.NewFromInt(1_000_000),
	}
}

func TestCreateAssetValidatesInput(t *testing.T) {
	repo := new(MockAssetRepository)
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{}, &recordingNotifier{})

	_, err := service.CreateAsset(CreateAssetRequest{
		Name:             "",
		CategoryID:       1,
		SubcategoryID:    99,
		UnitID:           1,
		AcquisitionValue: decimal.NewFromInt(-5),
		AcquisitionDate:  time.Now().AddDate(0, 0, 2),
	})

	assert.Error(t, err)
	validation, ok := err.(*apperrors.ValidationError)
	assert.True(t, ok)
	assert.Contains(t, validation.Fields, "name")
	assert.Contains(t, validation.Fields, "acquisition_value")
	assert.Contains(t, validation.Fields, "acquisition_date")
	assert.Contains(t, validation.Fields, "subcategory_id")
	repo.AssertNotCalled(t, "InsertAsset", mock.Anything, mock.Anything)
}

func TestCreateAssetRejectsSubcategoryFromAnotherCategory(t *testing.T) {
	repo := new(MockAssetRepository)
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{}, &recordingNotifier{})

	_, err := service.CreateAsset(CreateAssetRequest{
		Name:             "Chariot",
		CategoryID:       1,
		SubcategoryID:    10,
		UnitID:           42,
		AcquisitionValue: decimal.NewFromInt(100_000),
		AcquisitionDate:  time.Date(2024, 1, 5, 0, 0, 0, 0, time.UTC),
	})

	validation, ok := err.(*apperrors.ValidationError)
	assert.True(t, ok)
	assert.Contains(t, validation.Fields, "unit_id")
}

func TestCreateAssetGeneratesSequentialCode(t *testing.T) {
	repo := new(MockAssetRepository)
	notifier := &recordingNotifier{}
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{}, notifier)

	repo.On("LastSequence", mock.Anything, "OPRAG-2024-INFO-").Return(41, nil).Once()
	repo.On("InsertAsset", mock.Anything, mock.MatchedBy(func(a *models.Asset) bool {
		return a.Code == "OPRAG-2024-INFO-00042" && a.Status == metadata.StatusActive
	})).Return(7, nil).Once()
	repo.On("InsertValuationRecord", mock.Anything, mock.MatchedBy(func(r models.ValuationRecord) bool {
		return r.Type == models.EvaluationAcquisition && r.AssetID == 7
	})).Return(1, nil).Once()
	repo.On("GetAsset", 7).Return(sampleAsset(), nil)

	asset, err := service.CreateAsset(CreateAssetRequest{
		Name:             "Poste de travail",
		CategoryID:       1,
		SubcategoryID:    10,
		UnitID:           1,
		AcquisitionValue: decimal.NewFromInt(850_000),
		AcquisitionDate:  time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC),
		Actor:            "jdoe",
	})

	assert.NoError(t, err)
	assert.Equal(t, 7, asset.ID)
	assert.Contains(t, notifier.events, "asset.created")
	repo.AssertExpectations(t)
}

func TestCreateAssetRejectsDuplicateCode(t *testing.T) {
	repo := new(MockAssetRepository)
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{}, &recordingNotifier{})

	repo.On("CodeExists", "OPRAG-2024-INFO-00001").Return(true, nil).Once()

	_, err := service.CreateAsset(CreateAssetRequest{
		Code:             "OPRAG-2024-INFO-00001",
		Name:             "Imprimante",
		CategoryID:       1,
		SubcategoryID:    10,
		UnitID:           1,
		AcquisitionValue: decimal.NewFromInt(200_000),
		AcquisitionDate:  time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
	})

	validation, ok := err.(*apperrors.ValidationError)
	assert.True(t, ok)
	assert.Contains(t, validation.Fields, "code")
}

func TestReviseAssetRejectsLargeValueChange(t *testing.T) {
	repo := new(MockAssetRepository)
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{}, &recordingNotifier{})

	repo.On("GetAsset", 7).Return(sampleAsset(), nil)

	newValue := decimal.NewFromInt(1_600_000)
	_, err := service.ReviseAsset(7, ReviseAssetRequest{AcquisitionValue: &newValue})

	validation, ok := err.(*apperrors.ValidationError)
	assert.True(t, ok)
	assert.Contains(t, validation.Fields, "acquisition_value")
	repo.AssertNotCalled(t, "UpdateAsset", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviseAssetRecordsReevaluation(t *testing.T) {
	repo := new(MockAssetRepository)
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{}, &recordingNotifier{})

	repo.On("GetAsset", 7).Return(sampleAsset(), nil)
	repo.On("GetAssetForUpdate", mock.Anything, 7).Return(sampleAsset(), nil).Once()
	repo.On("UpdateAsset", mock.Anything, 7, mock.Anything).Return(nil)
	repo.On("InsertValuationRecord", mock.Anything, mock.MatchedBy(func(r models.ValuationRecord) bool {
		return r.Type == models.EvaluationReevaluation && r.Value.Equal(decimal.NewFromInt(1_300_000))
	})).Return(2, nil).Once()

	newValue := decimal.NewFromInt(1_300_000)
	_, err := service.ReviseAsset(7, ReviseAssetRequest{
		AcquisitionValue: &newValue,
		Reason:           "Expertise 2024",
		Actor:            "jdoe",
	})

	assert.NoError(t, err)
	repo.AssertExpectations(t)
}

func TestReviseAssetRejectsTerminalState(t *testing.T) {
	repo := new(MockAssetRepository)
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{}, &recordingNotifier{})

	retired := sampleAsset()
	retired.Status = metadata.StatusRetired
	repo.On("GetAsset", 7).Return(retired, nil)

	name := "Nouveau nom"
	_, err := service.ReviseAsset(7, ReviseAssetRequest{Name: &name})

	conflict, ok := err.(*apperrors.StateConflictError)
	assert.True(t, ok)
	assert.Equal(t, "RETIRED", conflict.State)
	repo.AssertNotCalled(t, "UpdateAsset", mock.Anything, mock.Anything, mock.Anything)
}

func TestReviseValueEmitsMaterialChangeEvent(t *testing.T) {
	repo := new(MockAssetRepository)
	notifier := &recordingNotifier{}
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{}, notifier)

	repo.On("GetAsset", 7).Return(sampleAsset(), nil)
	repo.On("InsertValuationRecord", mock.Anything, mock.Anything).Return(3, nil).Once()
	repo.On("UpdateAsset", mock.Anything, 7, goqu.Record{"current_value": decimal.NewFromInt(1_300_000)}).Return(nil).Once()

	record, err := service.ReviseValue(7, ReviseValueRequest{
		Value:  decimal.NewFromInt(1_300_000),
		Type:   "EXPERT_APPRAISAL",
		Reason: "Expertise externe",
		Actor:  "jdoe",
	})

	assert.NoError(t, err)
	assert.Equal(t, models.EvaluationExpertAppraisal, record.Type)
	assert.Contains(t, notifier.events, "asset.material_value_change")
}

func TestReviseValueSmallChangeStaysQuiet(t *testing.T) {
	repo := new(MockAssetRepository)
	notifier := &recordingNotifier{}
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{}, notifier)

	repo.On("GetAsset", 7).Return(sampleAsset(), nil)
	repo.On("InsertValuationRecord", mock.Anything, mock.Anything).Return(4, nil).Once()
	repo.On("UpdateAsset", mock.Anything, 7, mock.Anything).Return(nil).Once()

	_, err := service.ReviseValue(7, ReviseValueRequest{
		Value: decimal.NewFromInt(1_100_000),
		Type:  "REEVALUATION",
	})

	assert.NoError(t, err)
	assert.NotContains(t, notifier.events, "asset.material_value_change")
}

func TestReviseValueRejectsNegative(t *testing.T) {
	repo := new(MockAssetRepository)
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{}, &recordingNotifier{})

	_, err := service.ReviseValue(7, ReviseValueRequest{
		Value: decimal.NewFromInt(-100),
		Type:  "REEVALUATION",
	})

	assert.Error(t, err)
	repo.AssertNotCalled(t, "InsertValuationRecord", mock.Anything, mock.Anything)
}

func TestTransferRequiresPermission(t *testing.T) {
	repo := new(MockAssetRepository)
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{allowed: false}, &recordingNotifier{})

	_, err := service.TransferAsset(7, TransferRequest{DestinationUnitID: 2, Actor: "jdoe"})

	permission, ok := err.(*apperrors.PermissionError)
	assert.True(t, ok)
	assert.Equal(t, "asset.transfer", permission.Action)
	repo.AssertNotCalled(t, "InsertMovement", mock.Anything, mock.Anything)
}

func TestTransferClosesOriginUnitCustody(t *testing.T) {
	repo := new(MockAssetRepository)
	custody := new(MockCustodyCloser)
	notifier := &recordingNotifier{}
	service := newTestService(repo, custody, stubPermissions{allowed: true}, notifier)

	repo.On("GetAssetForUpdate", mock.Anything, 7).Return(sampleAsset(), nil).Once()
	repo.On("InsertMovement", mock.Anything, mock.MatchedBy(func(m models.Movement) bool {
		return m.FromUnitID == 1 && m.ToUnitID == 2
	})).Return(55, nil).Once()
	repo.On("UpdateAsset", mock.Anything, 7, goqu.Record{"unit_id": 2}).Return(nil).Once()
	custody.On("CloseOpenForUnitTx", mock.Anything, 7, 1, mock.Anything).Return(nil).Once()

	movement, err := service.TransferAsset(7, TransferRequest{
		DestinationUnitID: 2,
		Reason:            "Redeploiement DSI",
		Actor:             "jdoe",
	})

	assert.NoError(t, err)
	assert.Equal(t, 55, movement.ID)
	assert.Contains(t, notifier.events, "asset.transferred")
	repo.AssertExpectations(t)
	custody.AssertExpectations(t)
}

func TestTransferRejectsSameUnit(t *testing.T) {
	repo := new(MockAssetRepository)
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{allowed: true}, &recordingNotifier{})

	repo.On("GetAssetForUpdate", mock.Anything, 7).Return(sampleAsset(), nil).Once()

	_, err := service.TransferAsset(7, TransferRequest{DestinationUnitID: 1, Actor: "jdoe"})

	validation, ok := err.(*apperrors.ValidationError)
	assert.True(t, ok)
	assert.Contains(t, validation.Fields, "destination_unit_id")
	repo.AssertNotCalled(t, "InsertMovement", mock.Anything, mock.Anything)
}

func TestRetireClosesAllCustody(t *testing.T) {
	repo := new(MockAssetRepository)
	custody := new(MockCustodyCloser)
	notifier := &recordingNotifier{}
	service := newTestService(repo, custody, stubPermissions{allowed: true}, notifier)

	repo.On("GetAssetForUpdate", mock.Anything, 7).Return(sampleAsset(), nil).Once()
	repo.On("UpdateAsset", mock.Anything, 7, mock.MatchedBy(func(fields goqu.Record) bool {
		return fields["status"] == metadata.StatusRetired
	})).Return(nil).Once()
	repo.On("InsertValuationRecord", mock.Anything, mock.MatchedBy(func(r models.ValuationRecord) bool {
		return r.Type == models.EvaluationDepreciation && r.Value.IsZero()
	})).Return(9, nil).Once()
	custody.On("CloseAllOpenTx", mock.Anything, 7, mock.Anything).Return(nil).Once()

	retired := sampleAsset()
	retired.Status = metadata.StatusRetired
	repo.On("GetAsset", 7).Return(retired, nil)

	asset, err := service.RetireAsset(7, RetireRequest{Reason: "Fin de vie", Actor: "admin"})

	assert.NoError(t, err)
	assert.Equal(t, metadata.StatusRetired, asset.Status)
	assert.Contains(t, notifier.events, "asset.retired")
	repo.AssertExpectations(t)
	custody.AssertExpectations(t)
}

func TestRetireTwiceConflicts(t *testing.T) {
	repo := new(MockAssetRepository)
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{allowed: true}, &recordingNotifier{})

	retired := sampleAsset()
	retired.Status = metadata.StatusRetired
	repo.On("GetAssetForUpdate", mock.Anything, 7).Return(retired, nil).Once()

	_, err := service.RetireAsset(7, RetireRequest{Reason: "Doublon", Actor: "admin"})

	_, ok := err.(*apperrors.StateConflictError)
	assert.True(t, ok)
	repo.AssertNotCalled(t, "UpdateAsset", mock.Anything, mock.Anything, mock.Anything)
}

func TestValuationUsesStoredDepreciationInputs(t *testing.T) {
	repo := new(MockAssetRepository)
	service := newTestService(repo, new(MockCustodyCloser), stubPermissions{}, &recordingNotifier{})

	asset := sampleAsset()
	asset.AcquisitionValue = decimal.NewFromInt(1_200_000)
	asset.AcquisitionDate = time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC)
	asset.DurationMonths = intPtr(24)
	asset.ResidualValue = decimal.NewFromInt(100_000)
	repo.On("GetAsset", 7).Return(asset, nil)

	result, err := service.Valuation(7, time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC), valuation.MethodLinear)

	assert.NoError(t, err)
	assert.True(t, result.NetValue.Equal(decimal.NewFromInt(650_000)),
		"expected 650000, got %s", result.NetValue)
	assert.Equal(t, 12, result.ElapsedMonths)
}
