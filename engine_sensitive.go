package otpgate

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// UpdateSensitiveData encrypts and stores the supplied profile fields. A nil
// field is left unchanged and a pointer to "" clears the stored value.
func (e *Engine) UpdateSensitiveData(ctx context.Context, userID string, upd SensitiveUpdate) (err error) {
	if e == nil || !e.flow.Initialized() {
		return ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "UpdateSensitiveData",
		attribute.String("otpgate.user_id", userID),
		attribute.Bool("otpgate.phone", upd.Phone != nil),
		attribute.Bool("otpgate.address", upd.Address != nil),
	)
	defer func() { endSpan(span, err) }()

	if userID == "" {
		return ErrInvalidRequest
	}
	if upd.Empty() {
		return nil
	}

	storeCtx, cancel := e.storageCtx(ctx)
	err = e.store.UpdateSensitive(storeCtx, userID, e.cipher, upd, e.now())
	cancel()
	if err != nil {
		return e.storeErr(err)
	}

	e.metricInc(MetricSensitiveUpdate)
	e.emitAudit(ctx, auditEventSensitiveUpdate, true, userID, "", "", nil, func() map[string]string {
		fields := map[string]string{}
		if upd.Phone != nil {
			fields["phone"] = presence(*upd.Phone)
		}
		if upd.Address != nil {
			fields["address"] = presence(*upd.Address)
		}
		return fields
	})
	return nil
}

// SensitiveData reports which encrypted fields hold data. It never decrypts.
func (e *Engine) SensitiveData(ctx context.Context, userID string) (_ SensitivePresence, err error) {
	if e == nil || !e.flow.Initialized() {
		return SensitivePresence{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "SensitiveData", attribute.String("otpgate.user_id", userID))
	defer func() { endSpan(span, err) }()

	ctx, cancel := e.storageCtx(ctx)
	defer cancel()
	p, err := e.store.SensitivePresence(ctx, userID)
	if err != nil {
		return SensitivePresence{}, e.storeErr(err)
	}
	return p, nil
}

// DecryptSensitiveData is the explicit plaintext read path. Tampered or
// truncated ciphertext returns ErrIntegrity.
func (e *Engine) DecryptSensitiveData(ctx context.Context, userID string) (_ SensitivePlaintext, err error) {
	if e == nil || !e.flow.Initialized() {
		return SensitivePlaintext{}, ErrEngineNotReady
	}
	ctx, span := e.startSpan(ctx, "DecryptSensitiveData", attribute.String("otpgate.user_id", userID))
	defer func() { endSpan(span, err) }()

	storeCtx, cancel := e.storageCtx(ctx)
	plain, err := e.store.DecryptSensitive(storeCtx, userID, e.cipher)
	cancel()
	if err != nil {
		err = e.storeErr(err)
		if errors.Is(err, ErrIntegrity) {
			e.metricInc(MetricIntegrityFailure)
			e.emitAudit(ctx, auditEventIntegrityFailure, false, userID, "", "", err, nil)
			e.logger.Error("sensitive field failed integrity check", zap.String("user_id", userID))
		}
		return SensitivePlaintext{}, err
	}

	e.metricInc(MetricSensitiveDecrypt)
	e.emitAudit(ctx, auditEventSensitiveDecrypt, true, userID, "", "", nil, nil)
	return plain, nil
}

func presence(v string) string {
	if v == "" {
		return "cleared"
	}
	return "set"
}
