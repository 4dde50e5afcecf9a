package grpcsvc

import (
	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/retail/internal/domain"
)

// codeOf сопоставляет вид ошибки с кодом gRPC.
func codeOf(kind domain.ErrorKind) codes.Code {
	switch kind {
	case domain.KindNone:
		return codes.OK
	case domain.KindBadRequest:
		return codes.InvalidArgument
	case domain.KindNotFound:
		return codes.NotFound
	case domain.KindInsufficientStock, domain.KindInvalidTransition:
		return codes.FailedPrecondition
	case domain.KindConflict:
		return codes.Aborted
	case domain.KindUnavailable:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// toStatus превращает доменную ошибку в статус с сообщением для пользователя.
// Внутренние подробности остаются в логе.
func toStatus(logger *log.Entry, method string, err error) error {
	if err == nil {
		return nil
	}
	kind := domain.KindOf(err)
	code := codeOf(kind)

	entry := logger.WithError(err).WithFields(log.Fields{"method": method, "kind": kind})
	if code == codes.Internal {
		entry.Error("request failed")
	} else {
		entry.Debug("request rejected")
	}
	return status.Error(code, domain.UserMessage(err))
}
