package dto

import (
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/models"
	"github.com/E-a-Sua-Vez/esv-backend-sub002/internal/service"
)

type ClientRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LastName string `json:"last_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	IDNumber string `json:"id_number"`
}

type HoldRequest struct {
	Date      string        `json:"date"`
	Block     *models.Block `json:"block"`
	SessionID string        `json:"session_id"`
}

func (r HoldRequest) ToInput(queueID string) service.HoldInput {
	return service.HoldInput{QueueID: queueID, Date: r.Date, Block: r.Block, SessionID: r.SessionID}
}

type CreateBookingRequest struct {
	Date          string        `json:"date"`
	Block         *models.Block `json:"block"`
	SessionID     string        `json:"session_id"`
	TermsAccepted bool          `json:"terms_accepted"`
	Client        ClientRequest `json:"client"`

	Channel                string                     `json:"channel"`
	Type                   string                     `json:"type"`
	ServicesID             []string                   `json:"services_id"`
	ServicesDetails        []models.ServiceDetail     `json:"services_details"`
	ServiceDuration        *int                       `json:"service_duration"`
	ProfessionalID         string                     `json:"professional_id"`
	ProfessionalCommission float64                    `json:"professional_commission"`
	CommissionType         string                     `json:"commission_type"`
	PackageID              string                     `json:"package_id"`
	Telemedicine           *models.TelemedicineConfig `json:"telemedicine"`
}

func (r CreateBookingRequest) ToInput(queueID string) service.CreateBookingInput {
	return service.CreateBookingInput{
		QueueID:       queueID,
		Date:          r.Date,
		Block:         r.Block,
		SessionID:     r.SessionID,
		TermsAccepted: r.TermsAccepted,
		Client: models.Client{
			ID:       r.Client.ID,
			Name:     r.Client.Name,
			LastName: r.Client.LastName,
			Email:    r.Client.Email,
			Phone:    r.Client.Phone,
			IDNumber: r.Client.IDNumber,
		},
		Channel:                r.Channel,
		Type:                   r.Type,
		ServicesID:             r.ServicesID,
		ServicesDetails:        r.ServicesDetails,
		ServiceDuration:        r.ServiceDuration,
		ProfessionalID:         r.ProfessionalID,
		ProfessionalCommission: r.ProfessionalCommission,
		CommissionType:         r.CommissionType,
		PackageID:              r.PackageID,
		Telemedicine:           r.Telemedicine,
	}
}

type PaymentRequest struct {
	Amount        float64 `json:"amount"`
	Commission    float64 `json:"commission"`
	PaymentMethod string  `json:"payment_method"`
}

type ConfirmRequest struct {
	ConfirmedBy string          `json:"confirmed_by"`
	Payment     *PaymentRequest `json:"payment"`
}

func (r ConfirmRequest) ToInput() service.ConfirmInput {
	in := service.ConfirmInput{ConfirmedBy: r.ConfirmedBy}
	if r.Payment != nil {
		in.Payment = &service.Payment{
			Amount:        r.Payment.Amount,
			Commission:    r.Payment.Commission,
			PaymentMethod: r.Payment.PaymentMethod,
		}
	}
	return in
}

type ActorRequest struct {
	Actor string `json:"actor"`
}

type TransferRequest struct {
	QueueID      string        `json:"queue_id"`
	Block        *models.Block `json:"block"`
	TransferedBy string        `json:"transfered_by"`
}

func (r TransferRequest) ToInput() service.TransferInput {
	return service.TransferInput{QueueID: r.QueueID, Block: r.Block, TransferedBy: r.TransferedBy}
}

type EditRequest struct {
	Date     string        `json:"date"`
	Block    *models.Block `json:"block"`
	EditedBy string        `json:"edited_by"`
}

func (r EditRequest) ToInput() service.EditInput {
	return service.EditInput{Date: r.Date, Block: r.Block, EditedBy: r.EditedBy}
}
