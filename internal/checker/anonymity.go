package checker

import (
	"net/http"

	"github.com/August26/proxychk/internal/model"
)

// Forwarding headers a target may report when the proxy leaks that it is a
// proxy, or leaks the client address.
const (
	headerForwardedFor = "X-Forwarded-For"
	headerRealIP       = "X-Real-Ip"
	headerVia          = "Via"
)

// DetermineAnonymity classifies a proxy from the request headers the target
// echoed back:
//
//   - none of X-Forwarded-For, X-Real-Ip, Via present -> Elite
//   - X-Real-Ip or Via present, no X-Forwarded-For -> Anonymous
//   - X-Forwarded-For present -> Transparent
func DetermineAnonymity(observed http.Header) model.Anonymity {
	forwardedFor := observed.Get(headerForwardedFor)
	realIP := observed.Get(headerRealIP)
	via := observed.Get(headerVia)

	switch {
	case forwardedFor == "" && realIP == "" && via == "":
		return model.AnonymityElite
	case forwardedFor == "":
		return model.AnonymityAnonymous
	default:
		return model.AnonymityTransparent
	}
}
