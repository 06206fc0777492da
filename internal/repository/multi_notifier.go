package repository

import (
	"context"
	"errors"

	"DemandCast/internal/domain/models"
	domrepo "DemandCast/internal/domain/repository"
)

// MultiNotifier fans an event out to every sink and joins their errors.
// A failing sink does not stop delivery to the others.
type MultiNotifier []domrepo.Notifier

var _ domrepo.Notifier = MultiNotifier(nil)

func (m MultiNotifier) NotifyRun(ctx context.Context, ev models.RunEvent) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyRun(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (m MultiNotifier) NotifyAlert(ctx context.Context, alert models.RiskAlert) error {
	var errs []error
	for _, n := range m {
		if err := n.NotifyAlert(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
