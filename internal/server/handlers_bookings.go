package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/openvax/vaxbook/internal/domain"
	apperrors "github.com/openvax/vaxbook/internal/errors"
)

type createBookingRequest struct {
	SlotID       string `json:"slotId"`
	PatientName  string `json:"patientName"`
	GuardianName string `json:"guardianName"`
	VaccineName  string `json:"vaccineName"`
	DoseNumber   int    `json:"doseNumber"`
}

type bookingView struct {
	ID            int64  `json:"id"`
	Code          string `json:"code"`
	PatientName   string `json:"patientName"`
	GuardianName  string `json:"guardianName,omitempty"`
	VaccineName   string `json:"vaccineName"`
	DoseNumber    int    `json:"doseNumber"`
	CenterID      string `json:"centerId"`
	SlotDate      string `json:"slotDate"`
	SlotTime      string `json:"slotTime"`
	Status        string `json:"status"`
	PaymentStatus string `json:"paymentStatus"`
	BatchNumber   string `json:"batchNumber,omitempty"`
}

func viewBooking(b *domain.Booking) bookingView {
	return bookingView{
		ID:            b.ID,
		Code:          b.Code,
		PatientName:   b.PatientName,
		GuardianName:  b.GuardianName,
		VaccineName:   b.VaccineName,
		DoseNumber:    b.DoseNumber,
		CenterID:      b.CenterID.String(),
		SlotDate:      b.SlotDate,
		SlotTime:      b.SlotTime,
		Status:        string(b.Status),
		PaymentStatus: string(b.PaymentStatus),
		BatchNumber:   b.BatchNumber,
	}
}

func bookingIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.ValidationError("invalid booking id")
	}
	return id, nil
}

func (s *Server) handleCreateBooking(c echo.Context) error {
	var req createBookingRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	slotID, err := uuid.Parse(req.SlotID)
	if err != nil {
		return apperrors.ValidationError("invalid slot id")
	}
	if req.PatientName == "" || req.VaccineName == "" {
		return apperrors.ValidationError("patientName and vaccineName are required")
	}
	if req.DoseNumber < 1 {
		return apperrors.ValidationError("doseNumber must be at least 1")
	}
	user := currentUser(c)

	booking, err := s.deps.Bookings.Create(c.Request().Context(), domain.CreateBookingRequest{
		UserID:       user.ID,
		SlotID:       slotID,
		PatientName:  req.PatientName,
		GuardianName: req.GuardianName,
		VaccineName:  req.VaccineName,
		DoseNumber:   req.DoseNumber,
	})
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusCreated, viewBooking(booking))
}

func (s *Server) handleListBookings(c echo.Context) error {
	user := currentUser(c)
	bookings, err := s.deps.Bookings.ListForUser(c.Request().Context(), user.ID)
	if err != nil {
		return mapDomainError(err)
	}
	views := make([]bookingView, 0, len(bookings))
	for i := range bookings {
		views = append(views, viewBooking(&bookings[i]))
	}
	return c.JSON(http.StatusOK, map[string]any{"bookings": views})
}

func (s *Server) handleCancelBooking(c echo.Context) error {
	id, err := bookingIDParam(c)
	if err != nil {
		return err
	}
	user := currentUser(c)

	booking, err := s.deps.Bookings.Cancel(c.Request().Context(), id, user.ID)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, viewBooking(booking))
}

// handleBookingQR returns the signed check-in payload for the caller's own
// booking.
func (s *Server) handleBookingQR(c echo.Context) error {
	id, err := bookingIDParam(c)
	if err != nil {
		return err
	}
	user := currentUser(c)

	payload, err := s.deps.Verifier.Issue(c.Request().Context(), id, user.ID)
	if err != nil {
		return mapDomainError(err)
	}
	return c.JSON(http.StatusOK, payload)
}
