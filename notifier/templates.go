package notifier

import (
	"fmt"
	"strings"

	"kvartaly_monitor/models"
)

// Message templates. The monitored site is Russian, so is the audience.

func FormatAvailableAlert(profileName, url string, result *models.ScanResult) string {
	var b strings.Builder
	b.WriteString("🚨 *ПОЯВИЛАСЬ СВОБОДНАЯ КВАРТИРА!*\n\n")
	fmt.Fprintf(&b, "Фильтр: *%s*\n", profileName)
	fmt.Fprintf(&b, "Свободно: *%d* из %d\n", result.AvailableCount(), result.Total)
	fmt.Fprintf(&b, "Забронировано: %d\n\n", result.Booked)
	fmt.Fprintf(&b, "[Открыть подборку](%s)\n\n", url)
	b.WriteString("Ответьте любым сообщением, чтобы подтвердить получение и остановить напоминания.")
	return b.String()
}

func FormatReminder(n, max int, profileName, url string, availableCount int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔔 *Напоминание %d/%d*\n\n", n, max)
	fmt.Fprintf(&b, "Квартира по фильтру *%s* всё ещё свободна (%d шт.)\n\n", profileName, availableCount)
	fmt.Fprintf(&b, "[Открыть подборку](%s)\n\n", url)
	b.WriteString("Ответьте любым сообщением, чтобы остановить напоминания.")
	return b.String()
}

func FormatAcknowledged(firstName string) string {
	name := firstName
	if name == "" {
		name = "Подписчик"
	}
	return fmt.Sprintf("✅ %s подтвердил(а) получение. Напоминания остановлены.", name)
}

func FormatStartup(profiles, intervalMinutes int) string {
	var b strings.Builder
	b.WriteString("🤖 *Мониторинг квартир запущен*\n\n")
	fmt.Fprintf(&b, "Фильтров: %d\n", profiles)
	fmt.Fprintf(&b, "Интервал проверки: %d мин.\n\n", intervalMinutes)
	b.WriteString("Команды: /status /check /subscribe /unsubscribe /chatid")
	return b.String()
}

func FormatScanError(profileName, message string) string {
	return fmt.Sprintf("⚠️ *Ошибка проверки*\n\nФильтр: %s\n%s", profileName, message)
}

func FormatHeartbeat(stats *models.MonitorStats) string {
	var b strings.Builder
	b.WriteString("💓 *Мониторинг работает*\n\n")
	fmt.Fprintf(&b, "Проверок за период: %d", stats.TotalScans)
	if stats.FailedScans > 0 {
		fmt.Fprintf(&b, " (ошибок: %d)", stats.FailedScans)
	}
	b.WriteString("\n")
	if stats.LastScanAt != nil {
		fmt.Fprintf(&b, "Последняя проверка: %s\n", stats.LastScanAt.Format("02.01.2006 15:04"))
		fmt.Fprintf(&b, "Квартир: %d, забронировано: %d, свободно: %d\n",
			stats.LastTotal, stats.LastBooked, stats.LastAvailable)
	}
	fmt.Fprintf(&b, "Подписчиков: %d", stats.Subscribers)
	return b.String()
}

func FormatStatus(stats *models.MonitorStats, pendingAlert bool) string {
	var b strings.Builder
	b.WriteString("📊 *Статус мониторинга*\n\n")
	fmt.Fprintf(&b, "Активных фильтров: %d\n", stats.ActiveProfiles)
	if stats.LastScanAt != nil {
		fmt.Fprintf(&b, "Последняя проверка: %s\n", stats.LastScanAt.Format("02.01.2006 15:04"))
		fmt.Fprintf(&b, "Квартир: %d, забронировано: %d, свободно: %d\n",
			stats.LastTotal, stats.LastBooked, stats.LastAvailable)
	} else {
		b.WriteString("Проверок ещё не было\n")
	}
	fmt.Fprintf(&b, "Подписчиков: %d\n", stats.Subscribers)
	if pendingAlert {
		b.WriteString("\n🔔 Есть неподтверждённое оповещение")
	}
	return b.String()
}

func FormatCheckResult(result *models.ScanResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🔍 *%s*\n\n", result.ProfileName)
	fmt.Fprintf(&b, "Всего квартир: %d\n", result.Total)
	fmt.Fprintf(&b, "Забронировано: %d\n", result.Booked)
	fmt.Fprintf(&b, "Свободно: %d\n", result.AvailableCount())
	if result.Unclassified > 0 {
		fmt.Fprintf(&b, "Не распознано: %d\n", result.Unclassified)
	}
	fmt.Fprintf(&b, "\nДлительность: %.1f сек.", result.Duration.Seconds())
	return b.String()
}

func FormatPriceChange(profileName, url string, change *models.ApartmentChange) string {
	var b strings.Builder
	b.WriteString("💰 *Изменилась цена*\n\n")
	fmt.Fprintf(&b, "Фильтр: *%s*\n", profileName)
	if change.PreviousPrice != nil && change.Apartment.Price != nil {
		fmt.Fprintf(&b, "Было: %.0f ₽\nСтало: %.0f ₽\n\n", *change.PreviousPrice, *change.Apartment.Price)
	}
	fmt.Fprintf(&b, "[Открыть подборку](%s)", url)
	return b.String()
}

func FormatWelcome(subscribed bool) string {
	var b strings.Builder
	b.WriteString("👋 Это бот мониторинга квартир.\n\n")
	if subscribed {
		b.WriteString("Вы подписаны на оповещения о свободных квартирах.\n\n")
	} else {
		b.WriteString("Подпишитесь командой /subscribe, чтобы получать оповещения.\n\n")
	}
	b.WriteString("Команды:\n")
	b.WriteString("/subscribe — подписаться\n")
	b.WriteString("/unsubscribe — отписаться\n")
	b.WriteString("/status — статус мониторинга\n")
	b.WriteString("/check — проверить сейчас\n")
	b.WriteString("/chatid — ваш chat ID")
	return b.String()
}
