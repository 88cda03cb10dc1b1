// Package messages holds every user-facing bot text. Telegram HTML.
package messages

import (
	"fmt"
	"strings"
	"time"

	"github.com/mwshark/shop-bot/types"
)

const ParseModeHTML = "HTML"

func Escape(s string) string {
	replacer := strings.NewReplacer(
		"&", "&amp;",
		"<", "&lt;",
		">", "&gt;",
		"\"", "&quot;",
		"'", "&#39;",
	)
	return replacer.Replace(strings.TrimSpace(s))
}

func StartWelcome() string {
	return "👋 <b>Добро пожаловать!</b>\nЗдесь можно купить VPN-подписку за пару минут.\n\nПеред началом подтвердите согласие с условиями использования."
}

func TermsPrompt(termsURL, privacyURL string) string {
	b := &strings.Builder{}
	b.WriteString("📄 <b>Условия использования</b>\n")
	if termsURL != "" {
		fmt.Fprintf(b, "• <a href=\"%s\">Пользовательское соглашение</a>\n", Escape(termsURL))
	}
	if privacyURL != "" {
		fmt.Fprintf(b, "• <a href=\"%s\">Политика конфиденциальности</a>\n", Escape(privacyURL))
	}
	b.WriteString("\nНажмите «Согласен», чтобы продолжить.")
	return b.String()
}

func MainMenu() string {
	return "🏠 <b>Главное меню</b>\nВыберите раздел:"
}

func Banned() string {
	return "🚫 Доступ к боту заблокирован."
}

func ForceSubscription(channelURL string) string {
	return fmt.Sprintf("📢 <b>Подпишитесь на канал</b>\nДля использования бота подпишитесь: %s", Escape(channelURL))
}

func Profile(user *types.User, keysCount, referrals int) string {
	return fmt.Sprintf(
		"👤 <b>Профиль</b>\n\n"+
			"🆔 ID: <code>%d</code>\n"+
			"🔑 Ключей: <b>%d</b>\n"+
			"💸 Потрачено: <b>%.2f ₽</b>\n"+
			"📅 Месяцев куплено: <b>%d</b>\n\n"+
			"👥 Рефералов: <b>%d</b>\n"+
			"💰 Реферальный баланс: <b>%.2f ₽</b>",
		user.TelegramID, keysCount, user.TotalSpent, user.TotalMonths, referrals, user.ReferralBalance)
}

func NoKeys() string {
	return "🔑 <b>Мои ключи</b>\nУ вас пока нет ключей. Купите подписку в главном меню."
}

func KeyListHeader() string {
	return "🔑 <b>Мои ключи</b>\nВыберите ключ:"
}

// KeyButton labels a key by its positional number, recomputed from the
// fetched list on every render.
func KeyButton(number int, expiry time.Time) string {
	return fmt.Sprintf("🔑 Ключ #%d (до %s)", number, expiry.Format("02.01.2006"))
}

func KeyDetails(number int, key *types.VPNKey) string {
	left := time.Until(key.ExpiryDate)
	status := "✅ активен"
	if left <= 0 {
		status = "❌ истёк"
	}
	b := &strings.Builder{}
	fmt.Fprintf(b, "🔑 <b>Ключ #%d</b>\n", number)
	fmt.Fprintf(b, "📅 Действует до: <b>%s</b>\n", key.ExpiryDate.Format("02.01.2006 15:04"))
	fmt.Fprintf(b, "⏳ Статус: %s", status)
	if left > 0 {
		fmt.Fprintf(b, " (%s)", TimeLeft(left))
	}
	fmt.Fprintf(b, "\n\n<code>%s</code>", Escape(key.SubscriptionLink))
	return b.String()
}

// TimeLeft renders a duration as "N дней" / "N часов" with Russian
// pluralization.
func TimeLeft(d time.Duration) string {
	days := int(d.Hours()) / 24
	if days > 0 {
		return fmt.Sprintf("осталось %d %s", days, plural(days, "день", "дня", "дней"))
	}
	hours := int(d.Hours())
	if hours > 0 {
		return fmt.Sprintf("осталось %d %s", hours, plural(hours, "час", "часа", "часов"))
	}
	minutes := int(d.Minutes())
	if minutes < 1 {
		minutes = 1
	}
	return fmt.Sprintf("осталось %d %s", minutes, plural(minutes, "минута", "минуты", "минут"))
}

func plural(n int, one, few, many string) string {
	m := n % 100
	if m > 19 {
		m = m % 10
	}
	switch {
	case m == 1:
		return one
	case m >= 2 && m <= 4:
		return few
	default:
		return many
	}
}

func ChoosePlan() string {
	return "💳 <b>Покупка подписки</b>\nВыберите тариф:"
}

func ChooseExtendPlan(number int) string {
	return fmt.Sprintf("🔄 <b>Продление ключа #%d</b>\nВыберите тариф:", number)
}

func PlanButton(plan *types.Plan) string {
	return fmt.Sprintf("%s — %.0f ₽", plan.Name, plan.Price)
}

func AskEmail() string {
	return "📧 <b>Почта для чека</b>\nОтправьте e-mail, на который придёт чек, или нажмите «Пропустить»."
}

func InvalidEmail() string {
	return "⚠️ Это не похоже на e-mail. Попробуйте ещё раз или нажмите «Пропустить»."
}

func ChooseMethod() string {
	return "💳 <b>Способ оплаты</b>\nВыберите, как оплатить:"
}

func PaymentLink(url string) string {
	return fmt.Sprintf("💳 <b>Счёт создан</b>\nОплатите по ссылке:\n%s\n\nПосле оплаты ключ придёт автоматически.", Escape(url))
}

func TONInstructions(wallet, comment, amountRUB string) string {
	return fmt.Sprintf(
		"💎 <b>Оплата в TON</b>\n\n"+
			"1. Переведите эквивалент <b>%s ₽</b> на кошелёк:\n<code>%s</code>\n"+
			"2. ОБЯЗАТЕЛЬНО укажите комментарий к переводу:\n<code>%s</code>\n\n"+
			"Без комментария платёж не будет распознан. Ключ придёт автоматически после подтверждения сети.",
		amountRUB, Escape(wallet), Escape(comment))
}

func BackendUnavailable() string {
	return "🚫 <b>Способ оплаты недоступен</b>\nПопробуйте другой способ или зайдите позже."
}

func TrialIssued() string {
	return "🎁 <b>Пробный период активирован!</b>\nКлюч придёт через несколько секунд."
}

func TrialUnavailable() string {
	return "🎁 Пробный период уже использован или отключён."
}

func ReferralInfo(link string, count int, balance float64, percent string) string {
	return fmt.Sprintf(
		"👥 <b>Реферальная программа</b>\n\n"+
			"Приглашайте друзей и получайте <b>%s%%</b> с их покупок.\n\n"+
			"🔗 Ваша ссылка:\n<code>%s</code>\n\n"+
			"👤 Приглашено: <b>%d</b>\n"+
			"💰 Баланс: <b>%.2f ₽</b>",
		Escape(percent), Escape(link), count, balance)
}

func About(text string) string {
	if strings.TrimSpace(text) == "" {
		return "ℹ️ <b>О сервисе</b>\nБыстрый и надёжный VPN."
	}
	return text
}

func Support(user, text string) string {
	b := &strings.Builder{}
	b.WriteString("🆘 <b>Поддержка</b>\n")
	if strings.TrimSpace(text) != "" {
		b.WriteString(Escape(text) + "\n")
	}
	if strings.TrimSpace(user) != "" {
		fmt.Fprintf(b, "Напишите нам: @%s", Escape(strings.TrimPrefix(user, "@")))
	}
	return b.String()
}

func ErrorDefault() string {
	return "🚫 <b>Ошибка</b>\nПопробуйте ещё раз."
}

func PlanGone() string {
	return "⚠️ Этот тариф больше недоступен. Выберите другой."
}

func SessionExpired() string {
	return "⌛️ Сессия покупки истекла. Начните заново из главного меню."
}
