package discord

import (
	"context"
	"errors"
	"net"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"ex-sniper/pkg/sniper"
)

func mapOutboundError(operation sniper.OutboundOperation, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sniper.ErrInvalidOutboundRequest) {
		return err
	}
	if _, ok := sniper.AsOutboundError(err); ok {
		return err
	}

	outboundErr := &sniper.OutboundError{
		Operation: operation,
		Kind:      sniper.OutboundErrorKindUnknown,
		Cause:     err,
	}

	var rateLimitErr *discordgo.RateLimitError
	if errors.As(err, &rateLimitErr) {
		outboundErr.Kind = sniper.OutboundErrorKindRateLimited
		outboundErr.StatusCode = http.StatusTooManyRequests
		if rateLimitErr.RateLimit != nil && rateLimitErr.TooManyRequests != nil {
			outboundErr.RetryAfter = rateLimitErr.TooManyRequests.RetryAfter
		}

		return outboundErr
	}

	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Response != nil {
			outboundErr.StatusCode = restErr.Response.StatusCode
		}
		if restErr.Message != nil {
			outboundErr.Code = restErr.Message.Code
		}
		outboundErr.Kind = classifyStatus(outboundErr.StatusCode)

		return outboundErr
	}
	if errors.Is(err, discordgo.ErrUnauthorized) {
		outboundErr.Kind = sniper.OutboundErrorKindUnauthorized
		outboundErr.StatusCode = http.StatusUnauthorized

		return outboundErr
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		outboundErr.Kind = sniper.OutboundErrorKindTemporary
	case errors.As(err, &netErr):
		outboundErr.Kind = sniper.OutboundErrorKindTemporary
	}

	return outboundErr
}

func classifyStatus(status int) sniper.OutboundErrorKind {
	switch {
	case status == http.StatusTooManyRequests:
		return sniper.OutboundErrorKindRateLimited
	case status == http.StatusUnauthorized:
		return sniper.OutboundErrorKindUnauthorized
	case status >= 500:
		return sniper.OutboundErrorKindTemporary
	case status >= 400:
		return sniper.OutboundErrorKindPermanent
	default:
		return sniper.OutboundErrorKindUnknown
	}
}
