package types

// Keys of the bot_settings table. All values are strings; booleans are
// stored as the literals "true"/"false".
const (
	SettingPanelLogin          = "panel_login"
	SettingPanelPassword       = "panel_password"
	SettingAboutText           = "about_text"
	SettingTermsURL            = "terms_url"
	SettingPrivacyURL          = "privacy_url"
	SettingSupportUser         = "support_user"
	SettingSupportText         = "support_text"
	SettingChannelURL          = "channel_url"
	SettingForceSubscription   = "force_subscription"
	SettingReceiptEmail        = "receipt_email"
	SettingBotToken            = "telegram_bot_token"
	SettingBotUsername         = "telegram_bot_username"
	SettingTrialEnabled        = "trial_enabled"
	SettingTrialDurationDays   = "trial_duration_days"
	SettingEnableReferrals     = "enable_referrals"
	SettingReferralPercentage  = "referral_percentage"
	SettingReferralDiscount    = "referral_discount"
	SettingMinimumWithdrawal   = "minimum_withdrawal"
	SettingAdminTelegramID     = "admin_telegram_id"
	SettingYooKassaShopID      = "yookassa_shop_id"
	SettingYooKassaSecretKey   = "yookassa_secret_key"
	SettingSBPEnabled          = "sbp_enabled"
	SettingCryptoBotToken      = "cryptobot_token"
	SettingHeleketMerchantID   = "heleket_merchant_id"
	SettingHeleketAPIKey       = "heleket_api_key"
	SettingDomain              = "domain"
	SettingTONWalletAddress    = "ton_wallet_address"
	SettingTONAPIKey           = "tonapi_key"
	SettingVPNAPIKey           = "mwshark_api_key"
	SettingPlategaMerchantID   = "platega_merchant_id"
	SettingPlategaSecretKey    = "platega_secret_key"
	SettingPlategaMethod       = "platega_payment_method"
	SettingPlategaAllowedIPs   = "platega_allowed_ips"
	SettingAndroidURL          = "android_url"
	SettingWindowsURL          = "windows_url"
	SettingIOSURL              = "ios_url"
	SettingLinuxURL            = "linux_url"
	SettingSetupCompleted      = "setup_completed"
)

// DefaultSettings is seeded into bot_settings on first start; present keys
// are left untouched.
var DefaultSettings = map[string]string{
	SettingPanelLogin:         "admin",
	SettingPanelPassword:      "admin",
	SettingAboutText:          "",
	SettingTermsURL:           "",
	SettingPrivacyURL:         "",
	SettingSupportUser:        "",
	SettingSupportText:        "",
	SettingChannelURL:         "",
	SettingForceSubscription:  "true",
	SettingReceiptEmail:       "example@example.com",
	SettingBotToken:           "",
	SettingBotUsername:        "",
	SettingTrialEnabled:       "true",
	SettingTrialDurationDays:  "3",
	SettingEnableReferrals:    "true",
	SettingReferralPercentage: "10",
	SettingReferralDiscount:   "5",
	SettingMinimumWithdrawal:  "100",
	SettingAdminTelegramID:    "",
	SettingYooKassaShopID:     "",
	SettingYooKassaSecretKey:  "",
	SettingSBPEnabled:         "false",
	SettingCryptoBotToken:     "",
	SettingHeleketMerchantID:  "",
	SettingHeleketAPIKey:      "",
	SettingDomain:             "",
	SettingTONWalletAddress:   "",
	SettingTONAPIKey:          "",
	SettingVPNAPIKey:          "",
	SettingPlategaMerchantID:  "",
	SettingPlategaSecretKey:   "",
	SettingPlategaMethod:      "2",
	SettingPlategaAllowedIPs:  "",
	SettingAndroidURL:         "https://telegra.ph/Instrukciya-Android-11-09",
	SettingWindowsURL:         "https://telegra.ph/Instrukciya-Windows-11-09",
	SettingIOSURL:             "https://telegra.ph/Instrukcii-ios-11-09",
	SettingLinuxURL:           "https://telegra.ph/Instrukciya-Linux-11-09",
	SettingSetupCompleted:     "false",
}
