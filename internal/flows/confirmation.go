package flows

import (
	"context"
	"fmt"

	"github.com/meenu-gupta/authcore/events"
	"github.com/meenu-gupta/authcore/identity"
)

// RunRequestConfirmation issues a one-time code and hands it to the event
// sink synchronously. A sink that cannot take delivery aborts the request,
// otherwise the code would be issued but never reach the recipient.
func RunRequestConfirmation(ctx context.Context, req RequestConfirmationRequest, d Deps) (*RequestConfirmationResult, error) {
	var channel, recipient string
	switch req.Method {
	case identity.MethodEmail:
		if req.Email == "" {
			return nil, fmt.Errorf("%w: email required", identity.ErrInvalidRequest)
		}
		channel, recipient = ChannelEmail, identity.NormalizeEmail(req.Email)
	case identity.MethodPhoneNumber:
		if req.PhoneNumber == "" {
			return nil, fmt.Errorf("%w: phone number required", identity.ErrInvalidRequest)
		}
		channel, recipient = ChannelSMS, req.PhoneNumber
	default:
		return nil, fmt.Errorf("%w: confirmation codes are delivered by email or sms", identity.ErrInvalidRequest)
	}

	if d.Codes == nil {
		return nil, identity.ErrStoreUnavailable
	}
	code, err := d.Codes.Issue(ctx, channel, recipient, d.Config.ConfirmationTTL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", identity.ErrStoreUnavailable, err)
	}

	event := d.event(events.ConfirmationRequested, "", req.ClientID, req.ProjectID, "", map[string]string{
		"channel":   channel,
		"recipient": recipient,
		"code":      code,
	})
	if err := d.Events.Deliver(ctx, event); err != nil {
		return nil, err
	}

	return &RequestConfirmationResult{ExpiresIn: int64(d.Config.ConfirmationTTL.Seconds())}, nil
}
