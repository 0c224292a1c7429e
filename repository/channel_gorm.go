package repository

import (
	"context"
	"errors"
	"time"

	"github.com/evobridge/evobridge/domains/channel"
	"gorm.io/gorm"
)

// --- Persistence Models ---

type channelModel struct {
	ID             string    `gorm:"primaryKey;column:id"`
	InboxID        string    `gorm:"column:inbox_id;not null;uniqueIndex"`
	Provider       string    `gorm:"column:provider;not null;index;uniqueIndex:idx_provider_instance"`
	PhoneNumber    string    `gorm:"column:phone_number;not null;uniqueIndex"`
	InstanceName   string    `gorm:"column:instance_name;uniqueIndex:idx_provider_instance"`
	APIURL         string    `gorm:"column:api_url;uniqueIndex:idx_provider_instance"`
	AdminToken     string    `gorm:"column:admin_token"`
	PhoneNumberID  string    `gorm:"column:phone_number_id;index"`
	Connection     string    `gorm:"column:connection;default:'close'"`
	ReauthRequired bool      `gorm:"column:reauth_required;default:false"`
	AccountActive  bool      `gorm:"column:account_active;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time `gorm:"column:updated_at;not null"`
}

func (channelModel) TableName() string { return "channels" }

// --- Repository Implementation ---

type ChannelGormRepository struct {
	db *gorm.DB
}

func NewChannelGormRepository(db *gorm.DB) *ChannelGormRepository {
	return &ChannelGormRepository{db: db}
}

func (r *ChannelGormRepository) Init(ctx context.Context) error {
	return r.db.WithContext(ctx).AutoMigrate(&channelModel{})
}

func (r *ChannelGormRepository) Create(ctx context.Context, ch *channel.Channel) error {
	model := toChannelModel(ch)
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *ChannelGormRepository) ByPhoneNumber(ctx context.Context, phoneNumber string) (*channel.Channel, error) {
	var m channelModel
	err := r.db.WithContext(ctx).First(&m, "phone_number = ?", phoneNumber).Error
	return r.resolve(m, err)
}

func (r *ChannelGormRepository) ByPhoneNumberID(ctx context.Context, phoneNumberID string) (*channel.Channel, error) {
	var m channelModel
	err := r.db.WithContext(ctx).First(&m, "phone_number_id = ?", phoneNumberID).Error
	return r.resolve(m, err)
}

func (r *ChannelGormRepository) ByInstance(ctx context.Context, instanceName, serverURL string) (*channel.Channel, error) {
	query := r.db.WithContext(ctx).Where("provider = ? AND instance_name = ?", channel.ProviderEvolution, instanceName)
	if serverURL != "" {
		query = query.Where("api_url = ?", serverURL)
	}

	var m channelModel
	err := query.First(&m).Error
	return r.resolve(m, err)
}

func (r *ChannelGormRepository) UpdateConnectionState(ctx context.Context, channelID string, state channel.ConnectionState) error {
	return r.db.WithContext(ctx).Model(&channelModel{}).
		Where("id = ?", channelID).
		Update("connection", string(state)).Error
}

func (r *ChannelGormRepository) resolve(m channelModel, err error) (*channel.Channel, error) {
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, channel.ErrChannelNotFound
		}
		return nil, err
	}
	ch := fromChannelModel(m)
	return &ch, nil
}

// --- Mapping ---

func toChannelModel(ch *channel.Channel) channelModel {
	return channelModel{
		ID:             ch.ID,
		InboxID:        ch.InboxID,
		Provider:       string(ch.Provider),
		PhoneNumber:    ch.PhoneNumber,
		InstanceName:   ch.InstanceName,
		APIURL:         ch.APIURL,
		AdminToken:     ch.AdminToken,
		PhoneNumberID:  ch.PhoneNumberID,
		Connection:     string(ch.Connection),
		ReauthRequired: ch.ReauthRequired,
		AccountActive:  ch.AccountActive,
		CreatedAt:      ch.CreatedAt,
		UpdatedAt:      ch.UpdatedAt,
	}
}

func fromChannelModel(m channelModel) channel.Channel {
	return channel.Channel{
		ID:             m.ID,
		InboxID:        m.InboxID,
		Provider:       channel.Provider(m.Provider),
		PhoneNumber:    m.PhoneNumber,
		InstanceName:   m.InstanceName,
		APIURL:         m.APIURL,
		AdminToken:     m.AdminToken,
		PhoneNumberID:  m.PhoneNumberID,
		Connection:     channel.ConnectionState(m.Connection),
		ReauthRequired: m.ReauthRequired,
		AccountActive:  m.AccountActive,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}
