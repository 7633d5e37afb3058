// Package skill содержит доменную модель навыков пользователя Skill Ascent.
//
// Навык (Skill) хранит журнал практики (PracticeLog), отсортированный от
// новых записей к старым. Каждая запись (PracticeEntry) - это одна сессия
// практики с датой и длительностью в минутах.
//
// Пакет определяет:
//
//   - Сущности: Skill, PracticeEntry
//   - Агрегаты для оценки достижений: TotalMinutes, FindByID
//   - Отпечаток содержимого (Fingerprint) для пропуска лишних циклов сверки
//   - Производные метрики для отображения: FormatDuration, ProgressPercent, Level
//   - Интерфейсы хранилища: Source, Repository, Notifier
//
// Пакет не зависит от инфраструктуры. Реализации интерфейсов находятся в
// internal/infrastructure/persistence.
package skill
