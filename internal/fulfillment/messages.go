package fulfillment

// Buyer and admin notifications, Telegram HTML.
const (
	msgConfigError = "🚫 <b>Ошибка конфигурации</b>\nОбратитесь в поддержку: платёж получен, но сервис временно не может выдать ключ."

	msgProvisionError = "🚫 <b>Не удалось выдать ключ</b>\nПлатёж получен, но при создании подписки произошла ошибка. Обратитесь в поддержку."

	msgLegacyKey = "🚫 <b>Этот ключ нельзя продлить</b>\nКлюч выпущен в старом формате. Обратитесь в поддержку."

	msgKeyIssued = "✅ <b>Оплата получена!</b>\n\n🔑 <b>Ключ #%d</b> готов.\n📅 Действует до: <b>%s</b>\n\n<code>%s</code>"

	msgKeyExtended = "✅ <b>Оплата получена!</b>\n\n🔑 <b>Ключ #%d</b> продлён.\n📅 Действует до: <b>%s</b>\n\n<code>%s</code>"

	msgReferralCredited = "🎉 <b>Реферальное начисление</b>\nВаш реферал совершил покупку. Начислено: <b>%s ₽</b>"

	msgAdminSale = "💰 <b>Новая оплата</b>\n👤 Покупатель: <code>%d</code>\n📦 Тариф: %s\n💵 Сумма: %s ₽\n💳 Способ: %s"
)
