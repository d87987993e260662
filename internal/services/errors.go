package services

import "fmt"

// User-facing messages. The operator UI is Russian, so rejections carry
// Russian text.
const (
	msgRaceNotFound          = "Гонка не найдена"
	msgRaceNameRequired      = "Название гонки обязательно"
	msgTotalLapsPositive     = "Количество кругов должно быть больше нуля"
	msgCooldownNonNegative   = "Кулдаун отметок должен быть неотрицательным"
	msgSlugEmpty             = "Слаг не может быть пустым"
	msgCategoryNameRequired  = "Имя категории обязательно"
	msgCategoryNotFound      = "Категория не найдена"
	msgBibPositive           = "Стартовый номер должен быть положительным числом"
	msgParticipantName       = "Имя участника обязательно"
	msgDuplicateBib          = "Участник с таким номером уже существует"
	msgParticipantNotFound   = "Участник не найден"
	msgNoParticipantsGiven   = "Не переданы участники для удаления"
	msgInvalidBib            = "Некорректный номер гонщика"
	msgRiderNotFound         = "Гонщик с таким номером не найден"
	msgBibNotIssued          = "Для этого гонщика номер ещё не выдан"
	msgTapNotFound           = "Отметка не найдена"
	msgTapConfirmationNeeded = "Недавняя отметка для этого номера, повторите для подтверждения"
)

// TapConfirmationError signals that a tap landed inside the race's
// cooldown window and needs explicit confirmation. It is a soft signal,
// not a rejection: resubmitting with the confirm flag records the tap.
type TapConfirmationError struct {
	Bib              int
	RemainingSeconds int
}

func (e *TapConfirmationError) Error() string {
	return fmt.Sprintf("%s (номер %d, осталось %d с)", msgTapConfirmationNeeded, e.Bib, e.RemainingSeconds)
}
