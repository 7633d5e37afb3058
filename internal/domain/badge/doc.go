// Package badge содержит доменную модель достижений (бейджей) Skill Ascent.
//
// Каждый пользователь получает свой набор бейджей из фиксированного каталога
// (Catalog) с пустым AchievedAt. Бейдж получен, когда AchievedAt задан;
// после этого значение никогда не очищается и не меняется.
//
// # Оценка правил
//
// Evaluator - чистая функция над (навыки, бейджи). Она считает агрегаты один
// раз за вызов (суммарные минуты и число различных дней практики по
// локальному календарю отображения), пропускает уже полученные бейджи и
// проставляет один и тот же момент времени всем бейджам, полученным в вызове:
//
//	ev := badge.NewEvaluator(badge.WithLocation(loc))
//	next := ev.Evaluate(skills, current)
//	updates := badge.Delta(current, next)
//
// Evaluator ничего не пишет. Запись выполняет контроллер сверки в
// internal/application/saga через интерфейс Store.
package badge
