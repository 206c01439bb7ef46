package services

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/idkeeper/internal/common"
	"github.com/dmitrijs2005/idkeeper/internal/server/notify"
)

func link(appURL, path, token string) string {
	return strings.TrimRight(appURL, "/") + common.APIPrefix + path + "?token=" + url.QueryEscape(token)
}

func verificationMessage(to, appURL, token string) notify.Message {
	return notify.Message{
		Kind:    notify.KindVerification,
		To:      to,
		Subject: "Verify your email",
		Body: fmt.Sprintf("Welcome! Please verify your email address by opening the link below:\n\n%s\n",
			link(appURL, "/auth/verify-email", token)),
	}
}

func mfaMessage(to, code string, ttl time.Duration) notify.Message {
	return notify.Message{
		Kind:    notify.KindMfaCode,
		To:      to,
		Subject: "Your MFA Code",
		Body:    fmt.Sprintf("Your MFA code is %s. It expires in %d minutes.\n", code, int(ttl.Minutes())),
	}
}

func resetMessage(to, appURL, token string) notify.Message {
	return notify.Message{
		Kind:    notify.KindPasswordReset,
		To:      to,
		Subject: "Password Reset",
		Body: fmt.Sprintf("A password reset was requested for your account. Open the link below to choose a new password:\n\n%s\n\nIf you did not request this, ignore this email.\n",
			link(appURL, "/auth/reset-password", token)),
	}
}
