package api

import (
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/anamnesis-symptom-engine/internal/middleware"
	"github.com/anamnesis-symptom-engine/internal/service"
)

const (
	streamWriteWait  = 10 * time.Second
	streamPongWait   = 60 * time.Second
	streamPingPeriod = (streamPongWait * 9) / 10
	streamMaxMessage = 64 * 1024
)

// StreamMessage is a patient message sent over the stream.
type StreamMessage struct {
	Text string `json:"text"`
}

// StreamReply answers one StreamMessage: the updated patient or an error.
type StreamReply struct {
	Patient *PatientResponse `json:"patient,omitempty"`
	Message *RecordResponse  `json:"message,omitempty"`
	Error   string           `json:"error,omitempty"`
}

// handlePatientStream upgrades to a WebSocket on which a client sends the
// messages of a consultation one by one and receives the accumulated
// record after each.
func (s *Server) handlePatientStream(c *gin.Context) {
	if !s.service.HasStore() {
		s.respondError(c, service.ErrStoreUnavailable)
		return
	}

	patientID := c.Param("id")
	conn, err := s.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		s.logger.WithError(err).Warn("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	log := s.logger.WithFields(logrus.Fields{
		"patient_id":     patientID,
		"correlation_id": c.GetString(middleware.CorrelationIDKey),
	})
	log.Info("Patient stream opened")

	conn.SetReadLimit(streamMaxMessage)
	conn.SetReadDeadline(time.Now().Add(streamPongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(streamPongWait))
	})

	done := make(chan struct{})
	defer close(done)
	go s.pingLoop(conn, done)

	ctx := c.Request.Context()
	for {
		var msg StreamMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.WithError(err).Warn("Patient stream closed unexpectedly")
			}
			break
		}

		var reply StreamReply
		update, err := s.service.AddPatientMessage(ctx, patientID, msg.Text)
		if err != nil {
			_, apiErr := s.toAPIError(c, err)
			reply.Error = apiErr.Message
		} else {
			reply.Patient = newPatientResponse(update.Patient, update.Record)
			reply.Message = newRecordResponse(update.Message)
		}

		conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
		if err := conn.WriteJSON(reply); err != nil {
			log.WithError(err).Warn("Failed to write to patient stream")
			break
		}
	}

	log.Info("Patient stream closed")
}

// pingLoop keeps the connection alive until done is closed. gorilla
// allows WriteControl concurrently with other writes.
func (s *Server) pingLoop(conn *websocket.Conn, done <-chan struct{}) {
	ticker := time.NewTicker(streamPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(streamWriteWait)); err != nil {
				if !errors.Is(err, websocket.ErrCloseSent) {
					s.logger.WithError(err).Debug("Stream ping failed")
				}
				return
			}
		}
	}
}
