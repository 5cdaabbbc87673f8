package i18n

// russianMessages contains all Russian translations.
var russianMessages = map[string]string{
	// Field labels
	"label.service":      "Сервис",
	"label.kind":         "Тип",
	"label.title":        "Название",
	"label.artist":       "Исполнитель",
	"label.album":        "Альбом",
	"label.year":         "Год",
	"label.cover":        "Обложка",
	"label.track_id":     "ID трека",
	"label.album_id":     "ID альбома",
	"label.access_key":   "Ключ доступа",
	"label.original_url": "Исходная ссылка",
	"label.resolved_url": "Итоговая ссылка",
	"label.final_url":    "Последняя ссылка",
	"label.yandex_url":   "Яндекс Музыка",
	"label.mts_url":      "МТС Музыка",
	"label.vk_url":       "VK Музыка",
	"label.tags":         "Мета-теги",
	"label.no_tags":      "На странице нет мета-тегов.",
	"label.failure_kind": "Причина",
	"label.error":        "Ошибка",

	// Services
	"service.yandex":  "Яндекс Музыка",
	"service.vk":      "VK Музыка",
	"service.mts":     "МТС Музыка",
	"service.unknown": "неизвестно",

	// Link kinds
	"kind.track":    "трек",
	"kind.album":    "альбом",
	"kind.playlist": "плейлист",
	"kind.unknown":  "неизвестно",

	// Failure kinds
	"failure.network":       "сетевая ошибка",
	"failure.http":          "ошибка HTTP",
	"failure.redirect_loop": "зацикленный редирект",
	"failure.captcha":       "страница с капчей",
	"failure.unknown":       "неизвестная ошибка",

	// Error messages
	"error.resolve_failed": "Не удалось разобрать ссылку.",
	"error.captcha_hint":   "Сервис запросил капчу. Откройте ссылку в браузере, пройдите проверку и повторите.",
	"error.no_url":         "Во входных данных нет ссылки: %s",
}
