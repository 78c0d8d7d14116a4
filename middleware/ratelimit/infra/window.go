package infra

import "edge-gateway/middleware/ratelimit/domain"

// slide aplica uma verificação da janela deslizante sobre w no instante now (ms).
// Descarta timestamps anteriores a now-window, decide e registra now se permitido.
func slide(w *domain.Window, now int64, cfg domain.Config) domain.Result {
	if w.WindowStart == 0 {
		w.WindowStart = now
	}
	w.LastActivity = now

	cutoff := now - cfg.WindowSizeMs
	kept := w.Requests[:0]
	for _, ts := range w.Requests {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
	}
	w.Requests = kept

	count := len(w.Requests)
	oldest := now
	for _, ts := range w.Requests {
		if ts < oldest {
			oldest = ts
		}
	}

	allowed := count < cfg.MaxRequests
	if allowed {
		w.Requests = append(w.Requests, now)
	}
	return resultFor(allowed, count, oldest, now, cfg)
}

// resultFor monta o Result a partir da contagem anterior à decisão.
// Compartilhado entre a store em memória e a store Redis.
func resultFor(allowed bool, count int, oldest, now int64, cfg domain.Config) domain.Result {
	res := domain.Result{
		Allowed:   allowed,
		ResetTime: oldest + cfg.WindowSizeMs,
	}

	used := count
	if allowed {
		used++
	}
	res.Remaining = max(0, cfg.MaxRequests-used)

	if !allowed {
		retry := ceilSeconds(res.ResetTime - now)
		res.RetryAfter = &retry
	}
	return res
}

func ceilSeconds(ms int64) int64 {
	if ms <= 0 {
		return 0
	}
	return (ms + 999) / 1000
}
