package gateway

import (
	"context"
	"sync"

	"bookings/entity"
)

type MailerMock struct {
	lock sync.Mutex

	Sent []entity.SendCompletionCode
	Err  error
}

func (m *MailerMock) SendCompletionCode(ctx context.Context, command entity.SendCompletionCode) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.Err != nil {
		return m.Err
	}
	m.Sent = append(m.Sent, command)

	return nil
}

func (m *MailerMock) SentTo(email string) []entity.SendCompletionCode {
	m.lock.Lock()
	defer m.lock.Unlock()

	var result []entity.SendCompletionCode
	for _, sent := range m.Sent {
		if sent.Email == email {
			result = append(result, sent)
		}
	}

	return result
}

// LastCode returns the most recent code mailed for the booking.
func (m *MailerMock) LastCode(bookingID string) (string, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	for i := len(m.Sent) - 1; i >= 0; i-- {
		if m.Sent[i].BookingID == bookingID {
			return m.Sent[i].Code, true
		}
	}

	return "", false
}
