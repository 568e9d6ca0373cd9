package handler

import (
    "errors"
    "net/http"
    "strconv"

    "github.com/labstack/echo/v4"

    "github.com/vinetrail/tour-booking/internal/booking"
    "github.com/vinetrail/tour-booking/internal/payment"
    "github.com/vinetrail/tour-booking/internal/repository"
)

// pathID parses the named path parameter as a uint64 ID.  Returns 0 and
// false (with the response already written) on malformed input.
func pathID(c echo.Context, name string) (uint64, bool) {
    id, err := strconv.ParseUint(c.Param(name), 10, 64)
    if err != nil || id == 0 {
        _ = c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + name})
        return 0, false
    }
    return id, true
}

// parsePositive parses a positive integer query value.
func parsePositive(s string) (int, error) {
    n, err := strconv.Atoi(s)
    if err != nil {
        return 0, err
    }
    if n <= 0 {
        return 0, strconv.ErrRange
    }
    return n, nil
}

// writeDomainError maps domain errors onto HTTP responses.  Conflicts from
// the exclusion constraint and the capacity check are 409 so clients can
// retry with different parameters; validation problems are 400; everything
// unrecognized is a 500 with a generic body.
func writeDomainError(c echo.Context, err error) error {
    var verr *booking.ValidationError
    var cerr *booking.CapacityError
    var cutoff *booking.CutoffError
    switch {
    case errors.As(err, &verr):
        return c.JSON(http.StatusBadRequest, echo.Map{"error": verr.Error(), "field": verr.Field})
    case errors.As(err, &cerr):
        return c.JSON(http.StatusConflict, echo.Map{"error": cerr.Error(), "remaining": cerr.Remaining})
    case errors.As(err, &cutoff):
        return c.JSON(http.StatusConflict, echo.Map{"error": cutoff.Error()})
    case errors.Is(err, booking.ErrTourCancelled):
        return c.JSON(http.StatusConflict, echo.Map{"error": "tour is cancelled"})
    case errors.Is(err, booking.ErrConflict):
        return c.JSON(http.StatusConflict, echo.Map{"error": "no vehicle available for the requested window"})
    case errors.Is(err, booking.ErrNotFound):
        return c.JSON(http.StatusNotFound, echo.Map{"error": "not found"})
    case errors.Is(err, payment.ErrAlreadyPaid):
        return c.JSON(http.StatusConflict, echo.Map{"error": "already paid"})
    case errors.Is(err, repository.ErrDuplicate):
        return c.JSON(http.StatusConflict, echo.Map{"error": "already exists"})
    }
    c.Logger().Errorf("internal error: %v", err)
    return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
