package serve

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gftdcojp/tng-client/internal/metrics"
	"github.com/gftdcojp/tng-client/pkg/tng"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const defaultSubjectPrefix = "tng"

// derivedRequest is the optional body of a derived-field request.
type derivedRequest struct {
	Frame string `json:"frame"`
}

// RunNATSResponder answers node and derived-field requests over NATS.
// Subject patterns:
//
//	{prefix}.node.{simulation}[.{snapshot}[.{subhalo}]]
//	{prefix}.derived.{simulation}.{snapshot}.{subhalo}
func RunNATSResponder(ctx context.Context, nc *nats.Conn, prefix string, resolver *Resolver, logger *zap.Logger) error {
	if prefix == "" {
		prefix = defaultSubjectPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("responder")

	nodeSubject := prefix + ".node.>"
	nodeSub, err := nc.Subscribe(nodeSubject, func(msg *nats.Msg) {
		id, err := subjectIdentity(msg.Subject, prefix+".node.")
		if err != nil {
			respondError(msg, "node", err)
			return
		}
		n, err := resolver.Resolve(ctx, id)
		if err != nil {
			respondError(msg, "node", err)
			return
		}
		view, err := viewNode(ctx, n)
		if err != nil {
			respondError(msg, "node", err)
			return
		}
		respondJSON(msg, "node", view)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", nodeSubject, err)
	}
	defer nodeSub.Unsubscribe()

	derivedSubject := prefix + ".derived.>"
	derivedSub, err := nc.Subscribe(derivedSubject, func(msg *nats.Msg) {
		var req derivedRequest
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &req); err != nil {
				respondError(msg, "derived", fmt.Errorf("%w: decoding request: %v", errInvalidFrame, err))
				return
			}
		}
		id, err := subjectIdentity(msg.Subject, prefix+".derived.")
		if err == nil && id.Level != tng.LevelSubhalo {
			err = fmt.Errorf("%w: derived fields exist only for subhalos", tng.ErrInvalidIdentity)
		}
		if err != nil {
			respondError(msg, "derived", err)
			return
		}
		n, err := resolver.Resolve(ctx, id)
		if err != nil {
			respondError(msg, "derived", err)
			return
		}
		view, err := viewDerived(ctx, n, req.Frame)
		if err != nil {
			respondError(msg, "derived", err)
			return
		}
		respondJSON(msg, "derived", view)
	})
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", derivedSubject, err)
	}
	defer derivedSub.Unsubscribe()

	logger.Info("NATS responder started",
		zap.String("node_subject", nodeSubject),
		zap.String("derived_subject", derivedSubject))

	<-ctx.Done()
	return nil
}

func subjectIdentity(subject, prefix string) (tng.Identity, error) {
	rest, ok := strings.CutPrefix(subject, prefix)
	if !ok || rest == "" {
		return tng.Identity{}, fmt.Errorf("%w: invalid subject %q", tng.ErrInvalidIdentity, subject)
	}
	return tng.IdentityFromPath(strings.Split(rest, ".")...)
}

func respondJSON(msg *nats.Msg, route string, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		respondError(msg, route, err)
		return
	}
	metrics.GatewayRequests.WithLabelValues("nats", route, "ok").Inc()
	msg.Respond(b)
}

func respondError(msg *nats.Msg, route string, err error) {
	metrics.GatewayRequests.WithLabelValues("nats", route, "error").Inc()
	msg.Respond(errorJSON(err.Error()))
}

func errorJSON(msg string) []byte {
	b, _ := json.Marshal(map[string]string{"error": msg})
	return b
}
