package inventory

import (
	"testing"
	"time"

	"github.com/doug-martin/goqu/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"patrimony/internal/repository"
	"patrimony/pkg/apperrors"
	"patrimony/pkg/metadata"
	"patrimony/pkg/models"
)

type MockCampaignRepository struct {
	mock.Mock
}

func (m *MockCampaignRepository) InsertCampaign(tx *goqu.TxDatabase, campaign models.InventoryCampaign) (int, error) {
	args := m.Called(tx, campaign)
	return args.Int(0), args.Error(1)
}

func (m *MockCampaignRepository) GetCampaign(campaignID int) (*models.InventoryCampaign, error) {
	args := m.Called(campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryCampaign), args.Error(1)
}

func (m *MockCampaignRepository) GetCampaignForUpdate(tx *goqu.TxDatabase, campaignID int) (*models.InventoryCampaign, error) {
	args := m.Called(tx, campaignID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryCampaign), args.Error(1)
}

func (m *MockCampaignRepository) UpdateCampaignStatus(tx *goqu.TxDatabase, campaignID int, status models.CampaignStatus) error {
	args := m.Called(tx, campaignID, status)
	return args.Error(0)
}

func (m *MockCampaignRepository) ListCampaigns() ([]models.InventoryCampaign, error) {
	args := m.Called()
	return args.Get(0).([]models.InventoryCampaign), args.Error(1)
}

func (m *MockCampaignRepository) InsertLineItems(tx *goqu.TxDatabase, lines []models.InventoryLineItem) error {
	args := m.Called(tx, lines)
	return args.Error(0)
}

func (m *MockCampaignRepository) GetLineForUpdate(tx *goqu.TxDatabase, campaignID, assetID int) (*models.InventoryLineItem, error) {
	args := m.Called(tx, campaignID, assetID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.InventoryLineItem), args.Error(1)
}

func (m *MockCampaignRepository) UpdateLine(tx *goqu.TxDatabase, lineID int, fields goqu.Record) error {
	args := m.Called(tx, lineID, fields)
	return args.Error(0)
}

func (m *MockCampaignRepository) GetLines(campaignID int) ([]models.InventoryLineItem, error) {
	args := m.Called(campaignID)
	return args.Get(0).([]models.InventoryLineItem), args.Error(1)
}

func (m *MockCampaignRepository) GetMissingAssetLines(campaignID int) ([]models.MissingAssetLine, error) {
	args := m.Called(campaignID)
	return args.Get(0).([]models.MissingAssetLine), args.Error(1)
}

type MockAssetSource struct {
	mock.Mock
}

func (m *MockAssetSource) GetAsset(id int) (*models.Asset, error) {
	args := m.Called(id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Asset), args.Error(1)
}

func (m *MockAssetSource) GetAssetsBy(conditions repository.QueryBuilder) ([]models.Asset, error) {
	args := m.Called(conditions)
	return args.Get(0).([]models.Asset), args.Error(1)
}

func (m *MockAssetSource) UpdateAsset(tx *goqu.TxDatabase, id int, fields goqu.Record) error {
	args := m.Called(tx, id, fields)
	return args.Error(0)
}

type stubTxRunner struct{}

func (stubTxRunner) WithTx(fn func(tx *goqu.TxDatabase) error) error {
	return fn(nil)
}

type stubCatalog struct {
	units *models.OrgUnitArena
}

func (s stubCatalog) Categories() (*models.CategoryArena, error) {
	return models.NewCategoryArena(nil, nil), nil
}

func (s stubCatalog) Units() (*models.OrgUnitArena, error) { return s.units, nil }

type recordingNotifier struct {
	events []string
}

func (n *recordingNotifier) Notify(eventType string, payload map[string]interface{}) {
	n.events = append(n.events, eventType)
}

func intPtr(v int) *int { return &v }

func newTestService(repo *MockCampaignRepository, assets *MockAssetSource, notifier *recordingNotifier) *Service {
	units := models.NewOrgUnitArena([]models.OrgUnit{
		{ID: 1, Code: "DG", Name: "Direction Generale", Active: true},
		{ID: 2, Code: "DSI", Name: "Direction des Systemes", ParentID: intPtr(1), Active: true},
	})
	return NewService(repo, assets, stubCatalog{units: units}, notifier, nil, stubTxRunner{}, zap.NewNop())
}

func fleetOfFive() []models.Asset {
	assets := make([]models.Asset, 0, 5)
	for i := 1; i <= 5; i++ {
		assets = append(assets, models.Asset{
			ID:           i,
			Code:         "OPRAG-2023-INFO-0000" + string(rune('0'+i)),
			Name:         "Poste",
			Unit:         models.OrgUnit{ID: 1},
			Location:     "Batiment A",
			Status:       metadata.StatusActive,
			Condition:    metadata.ConditionGood,
			CurrentValue: decimal.NewFromInt(int64(i) * 100_000),
		})
	}
	return assets
}

func inProgressCampaign() *models.InventoryCampaign {
	return &models.InventoryCampaign{
		ID:      4,
		Name:    "Inventaire annuel",
		Status:  models.CampaignInProgress,
		UnitIDs: []int{1},
	}
}

func TestCreateCampaignValidatesDates(t *testing.T) {
	repo := new(MockCampaignRepository)
	service := newTestService(repo, new(MockAssetSource), &recordingNotifier{})

	start := time.Now().AddDate(0, 0, -3)
	_, err := service.CreateCampaign(CreateCampaignRequest{
		Name:      "Inventaire",
		StartDate: start,
		EndDate:   start.AddDate(0, 0, -1),
		UnitIDs:   []int{1},
	})

	validation, ok := err.(*apperrors.ValidationError)
	assert.True(t, ok)
	assert.Contains(t, validation.Fields, "start_date")
	assert.Contains(t, validation.Fields, "end_date")
	repo.AssertNotCalled(t, "InsertCampaign", mock.Anything, mock.Anything)
}

func TestCreateCampaignFreezesBaselines(t *testing.T) {
	repo := new(MockCampaignRepository)
	assets := new(MockAssetSource)
	notifier := &recordingNotifier{}
	service := newTestService(repo, assets, notifier)

	assets.On("GetAssetsBy", mock.Anything).Return(fleetOfFive(), nil).Once()
	repo.On("InsertCampaign", mock.Anything, mock.MatchedBy(func(c models.InventoryCampaign) bool {
		return c.Status == models.CampaignPlanned
	})).Return(4, nil).Once()
	repo.On("InsertLineItems", mock.Anything, mock.MatchedBy(func(lines []models.InventoryLineItem) bool {
		if len(lines) != 5 {
			return false
		}
		for i, line := range lines {
			if line.Status != models.LineToVerify {
				return false
			}
			if !line.BaselineValue.Equal(decimal.NewFromInt(int64(i+1) * 100_000)) {
				return false
			}
		}
		return true
	})).Return(nil).Once()

	start := time.Now().AddDate(0, 0, 7)
	campaign, err := service.CreateCampaign(CreateCampaignRequest{
		Name:      "Inventaire annuel",
		StartDate: start,
		EndDate:   start.AddDate(0, 1, 0),
		UnitIDs:   []int{1},
		Actor:     "jdoe",
	})

	assert.NoError(t, err)
	assert.Equal(t, 4, campaign.ID)
	assert.Contains(t, notifier.events, "inventory.campaign_created")
	repo.AssertExpectations(t)
}

func TestRecordLineRequiresCampaignInProgress(t *testing.T) {
	repo := new(MockCampaignRepository)
	assets := new(MockAssetSource)
	service := newTestService(repo, assets, &recordingNotifier{})

	fleet := fleetOfFive()
	assets.On("GetAsset", 1).Return(&fleet[0], nil).Once()
	planned := inProgressCampaign()
	planned.Status = models.CampaignPlanned
	repo.On("GetCampaignForUpdate", mock.Anything, 4).Return(planned, nil).Once()

	_, err := service.RecordLine(4, RecordLineRequest{AssetID: 1, Present: true})

	conflict, ok := err.(*apperrors.StateConflictError)
	assert.True(t, ok)
	assert.Equal(t, "PLANNED", conflict.State)
}

func TestRecordLineOnlyOnce(t *testing.T) {
	repo := new(MockCampaignRepository)
	assets := new(MockAssetSource)
	service := newTestService(repo, assets, &recordingNotifier{})

	fleet := fleetOfFive()
	assets.On("GetAsset", 1).Return(&fleet[0], nil).Once()
	repo.On("GetCampaignForUpdate", mock.Anything, 4).Return(inProgressCampaign(), nil).Once()
	repo.On("GetLineForUpdate", mock.Anything, 4, 1).Return(&models.InventoryLineItem{
		ID: 10, CampaignID: 4, AssetID: 1, Status: models.LineVerified,
	}, nil).Once()

	_, err := service.RecordLine(4, RecordLineRequest{AssetID: 1, Present: true})

	_, ok := err.(*apperrors.StateConflictError)
	assert.True(t, ok)
	repo.AssertNotCalled(t, "UpdateLine", mock.Anything, mock.Anything, mock.Anything)
}

func TestRecordLineAbsentAssetIsNotFoundAnomaly(t *testing.T) {
	repo := new(MockCampaignRepository)
	assets := new(MockAssetSource)
	notifier := &recordingNotifier{}
	service := newTestService(repo, assets, notifier)

	fleet := fleetOfFive()
	assets.On("GetAsset", 1).Return(&fleet[0], nil).Once()
	repo.On("GetCampaignForUpdate", mock.Anything, 4).Return(inProgressCampaign(), nil).Once()
	repo.On("GetLineForUpdate", mock.Anything, 4, 1).Return(&models.InventoryLineItem{
		ID: 10, CampaignID: 4, AssetID: 1, Status: models.LineToVerify,
		BaselineValue: decimal.NewFromInt(100_000),
	}, nil).Once()
	repo.On("UpdateLine", mock.Anything, 10, mock.Anything).Return(nil).Once()
	assets.On("UpdateAsset", mock.Anything, 1, mock.Anything).Return(nil).Once()

	line, err := service.RecordLine(4, RecordLineRequest{AssetID: 1, Present: false, Actor: "agent"})

	assert.NoError(t, err)
	assert.Equal(t, models.LineAnomaly, line.Status)
	assert.Equal(t, []models.AnomalyCode{models.AnomalyNotFound}, line.AnomalyCodes)
	assert.Contains(t, notifier.events, "inventory.anomaly")
}

func TestRecordLineDetectsCombinedAnomalies(t *testing.T) {
	repo := new(MockCampaignRepository)
	assets := new(MockAssetSource)
	service := newTestService(repo, assets, &recordingNotifier{})

	fleet := fleetOfFive()
	assets.On("GetAsset", 2).Return(&fleet[1], nil).Once()
	repo.On("GetCampaignForUpdate", mock.Anything, 4).Return(inProgressCampaign(), nil).Once()
	repo.On("GetLineForUpdate", mock.Anything, 4, 2).Return(&models.InventoryLineItem{
		ID: 11, CampaignID: 4, AssetID: 2, Status: models.LineToVerify,
		BaselineValue: decimal.NewFromInt(200_000),
	}, nil).Once()
	repo.On("UpdateLine", mock.Anything, 11, mock.Anything).Return(nil).Once()
	assets.On("UpdateAsset", mock.Anything, 2, mock.MatchedBy(func(fields goqu.Record) bool {
		return fields["condition"] == metadata.ConditionPoor
	})).Return(nil).Once()

	observedCondition := "POOR"
	observedLocation := "Batiment C"
	observedValue := decimal.NewFromInt(120_000)

	line, err := service.RecordLine(4, RecordLineRequest{
		AssetID:           2,
		Present:           true,
		ObservedCondition: &observedCondition,
		ObservedLocation:  &observedLocation,
		ObservedValue:     &observedValue,
		Actor:             "agent",
	})

	assert.NoError(t, err)
	assert.Equal(t, models.LineAnomaly, line.Status)
	assert.ElementsMatch(t, []models.AnomalyCode{
		models.AnomalyRelocationMismatch,
		models.AnomalyConditionDegraded,
		models.AnomalyValueVariance,
	}, line.AnomalyCodes)
}

func TestRecordLineAlreadyDegradedAssetIsNoAnomaly(t *testing.T) {
	repo := new(MockCampaignRepository)
	assets := new(MockAssetSource)
	notifier := &recordingNotifier{}
	service := newTestService(repo, assets, notifier)

	worn := fleetOfFive()[2]
	worn.Condition = metadata.ConditionPoor
	assets.On("GetAsset", 3).Return(&worn, nil).Once()
	repo.On("GetCampaignForUpdate", mock.Anything, 4).Return(inProgressCampaign(), nil).Once()
	repo.On("GetLineForUpdate", mock.Anything, 4, 3).Return(&models.InventoryLineItem{
		ID: 12, CampaignID: 4, AssetID: 3, Status: models.LineToVerify,
		BaselineValue: decimal.NewFromInt(300_000),
	}, nil).Once()
	repo.On("UpdateLine", mock.Anything, 12, mock.Anything).Return(nil).Once()
	assets.On("UpdateAsset", mock.Anything, 3, mock.Anything).Return(nil).Once()

	observedCondition := "POOR"
	line, err := service.RecordLine(4, RecordLineRequest{
		AssetID:           3,
		Present:           true,
		ObservedCondition: &observedCondition,
		Actor:             "agent",
	})

	assert.NoError(t, err)
	assert.Equal(t, models.LineVerified, line.Status)
	assert.Empty(t, line.AnomalyCodes)
	assert.NotContains(t, notifier.events, "inventory.anomaly")
}

func TestAdvanceRejectsRegression(t *testing.T) {
	repo := new(MockCampaignRepository)
	service := newTestService(repo, new(MockAssetSource), &recordingNotifier{})

	closed := inProgressCampaign()
	closed.Status = models.CampaignClosed
	repo.On("GetCampaignForUpdate", mock.Anything, 4).Return(closed, nil).Once()

	_, err := service.Advance(4, models.CampaignInProgress, "jdoe")

	_, ok := err.(*apperrors.StateConflictError)
	assert.True(t, ok)
	repo.AssertNotCalled(t, "UpdateCampaignStatus", mock.Anything, mock.Anything, mock.Anything)
}

func TestAdvancePlannedToInProgress(t *testing.T) {
	repo := new(MockCampaignRepository)
	service := newTestService(repo, new(MockAssetSource), &recordingNotifier{})

	planned := inProgressCampaign()
	planned.Status = models.CampaignPlanned
	repo.On("GetCampaignForUpdate", mock.Anything, 4).Return(planned, nil).Once()
	repo.On("UpdateCampaignStatus", mock.Anything, 4, models.CampaignInProgress).Return(nil).Once()

	campaign, err := service.Advance(4, models.CampaignInProgress, "jdoe")

	assert.NoError(t, err)
	assert.Equal(t, models.CampaignInProgress, campaign.Status)
	repo.AssertExpectations(t)
}

func TestReportAggregatesLines(t *testing.T) {
	repo := new(MockCampaignRepository)
	service := newTestService(repo, new(MockAssetSource), &recordingNotifier{})

	present := true
	absent := false
	observed := decimal.NewFromInt(90_000)

	repo.On("GetCampaign", 4).Return(inProgressCampaign(), nil).Once()
	repo.On("GetLines", 4).Return([]models.InventoryLineItem{
		{ID: 1, BaselineValue: decimal.NewFromInt(100_000), Status: models.LineVerified, Present: &present, ObservedValue: &observed},
		{ID: 2, BaselineValue: decimal.NewFromInt(200_000), Status: models.LineAnomaly, Present: &absent,
			AnomalyCodes: []models.AnomalyCode{models.AnomalyNotFound}},
		{ID: 3, BaselineValue: decimal.NewFromInt(300_000), Status: models.LineToVerify},
		{ID: 4, BaselineValue: decimal.NewFromInt(400_000), Status: models.LineVerified, Present: &present},
	}, nil).Once()
	repo.On("GetMissingAssetLines", 4).Return([]models.MissingAssetLine{
		{AssetID: 2, Code: "OPRAG-2023-INFO-00002", BaselineValue: decimal.NewFromInt(200_000)},
	}, nil).Once()

	report, err := service.Report(4)

	assert.NoError(t, err)
	assert.Equal(t, 4, report.TotalLines)
	assert.Equal(t, 2, report.VerifiedLines)
	assert.Equal(t, 1, report.AnomalyLines)
	assert.Equal(t, 1, report.PendingLines)
	assert.InDelta(t, 75.0, report.ProgressPct, 0.01)
	assert.InDelta(t, 66.66, report.PresencePct, 0.01)
	assert.Equal(t, 1, report.AnomaliesByCode[models.AnomalyNotFound])
	assert.True(t, report.BaselineTotal.Equal(decimal.NewFromInt(1_000_000)))
	assert.Len(t, report.MissingAssets, 1)
}
