package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const paymentPageHTML = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>Pay invoice · Payforge</title>
    <link rel="icon" href="data:image/svg+xml,<svg xmlns='http://www.w3.org/2000/svg' viewBox='0 0 100 100'><text y='.9em' font-size='90'>⬡</text></svg>">
    <link rel="preconnect" href="https://fonts.googleapis.com">
    <link rel="preconnect" href="https://fonts.gstatic.com" crossorigin>
    <link href="https://fonts.googleapis.com/css2?family=Inter:wght@400;500;600&family=JetBrains+Mono:wght@400;500&display=swap" rel="stylesheet">
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }
        :root {
            --bg: #09090b; --bg-subtle: #18181b; --border: #27272a;
            --text: #fafafa; --text-secondary: #a1a1aa; --text-tertiary: #52525b;
            --accent: #6366f1; --ok: #22c55e; --warn: #f59e0b; --err: #ef4444;
        }
        body {
            font-family: 'Inter', -apple-system, sans-serif;
            background: var(--bg); color: var(--text);
            min-height: 100vh; font-size: 14px;
            display: flex; align-items: center; justify-content: center;
            -webkit-font-smoothing: antialiased;
        }
        .mono { font-family: 'JetBrains Mono', monospace; }
        .card {
            width: 420px; max-width: calc(100vw - 32px);
            background: var(--bg-subtle); border: 1px solid var(--border);
            border-radius: 12px; padding: 32px; margin: 24px 0;
        }
        .brand { display: flex; align-items: center; gap: 10px; margin-bottom: 24px; }
        .brand-mark { width: 24px; height: 24px; background: var(--accent); border-radius: 6px; }
        .brand-text { font-weight: 600; font-size: 15px; }
        .amount { font-size: 28px; font-weight: 600; margin-bottom: 4px; }
        .order { color: var(--text-secondary); font-size: 13px; margin-bottom: 24px; }
        h2 { font-size: 15px; font-weight: 600; margin-bottom: 12px; }
        .row { display: flex; gap: 8px; flex-wrap: wrap; margin-bottom: 16px; }
        .chip {
            background: var(--bg); border: 1px solid var(--border);
            border-radius: 8px; padding: 10px 14px; cursor: pointer;
            color: var(--text); font-size: 13px; transition: border-color 0.15s;
        }
        .chip:hover { border-color: var(--text-tertiary); }
        .chip.selected { border-color: var(--accent); color: var(--accent); }
        .chip .sub { display: block; font-size: 11px; color: var(--text-tertiary); margin-top: 2px; }
        .rate { color: var(--text-secondary); font-size: 13px; margin-bottom: 16px; }
        .rate strong { color: var(--text); }
        button.primary {
            width: 100%; background: var(--accent); border: none; color: #fff;
            border-radius: 8px; padding: 12px; font-size: 14px; font-weight: 500;
            cursor: pointer;
        }
        button.primary:disabled { opacity: 0.5; cursor: default; }
        button.ghost {
            width: 100%; background: none; border: none; color: var(--text-tertiary);
            padding: 10px; font-size: 13px; cursor: pointer; margin-top: 8px;
        }
        button.ghost:hover { color: var(--text-secondary); }
        .address-box {
            background: var(--bg); border: 1px solid var(--border); border-radius: 8px;
            padding: 14px; font-size: 13px; word-break: break-all; margin-bottom: 12px;
            cursor: pointer;
        }
        .countdown { text-align: center; margin: 16px 0; }
        .countdown .time { font-size: 32px; font-weight: 600; }
        .countdown .label { color: var(--text-tertiary); font-size: 12px; }
        .countdown.low .time { color: var(--warn); }
        .status { text-align: center; padding: 24px 0; }
        .status .icon { font-size: 40px; margin-bottom: 12px; }
        .status .title { font-size: 18px; font-weight: 600; margin-bottom: 6px; }
        .status .desc { color: var(--text-secondary); font-size: 13px; }
        .status.ok .icon { color: var(--ok); }
        .status.err .icon { color: var(--err); }
        .inline-error {
            background: rgba(239, 68, 68, 0.1); border: 1px solid rgba(239, 68, 68, 0.3);
            color: var(--err); border-radius: 8px; padding: 10px 14px;
            font-size: 13px; margin-bottom: 16px;
        }
        .pulse { animation: pulse 2s ease-in-out infinite; }
        @keyframes pulse { 0%, 100% { opacity: 1; } 50% { opacity: 0.4; } }
        .hidden { display: none; }
    </style>
</head>
<body>
    <div class="card">
        <div class="brand"><div class="brand-mark"></div><span class="brand-text">Payforge</span></div>
        <div id="app"><div class="status"><div class="desc pulse">Loading invoice…</div></div></div>
    </div>
    <script>
        const invoiceId = {{.InvoiceID}};
        const api = '/api/pay/' + encodeURIComponent(invoiceId);
        let state = null;
        let ws = null;

        const fmt = (a, c) => a + ' ' + c;
        const esc = s => String(s ?? '').replace(/[&<>"']/g, m => ({'&':'&amp;','<':'&lt;','>':'&gt;','"':'&quot;',"'":'&#39;'}[m]));
        const mmss = s => {
            const m = Math.floor(s / 60), r = s % 60;
            return String(m).padStart(2,'0') + ':' + String(r).padStart(2,'0');
        };

        function render() {
            const el = document.getElementById('app');
            if (!state) return;
            const inv = state.invoice;
            const head = inv
                ? '<div class="amount mono">' + esc(fmt(inv.fiatAmount, inv.fiatCurrency)) + '</div>' +
                  '<div class="order">Order ' + esc(inv.orderId || inv.id) + '</div>'
                : '';

            switch (state.step) {
            case 'select_currency': {
                const nets = (state.networks || []).map(n =>
                    '<button class="chip' + (n === state.selectedNetwork ? ' selected' : '') + '" onclick="pickNetwork(\'' + esc(n) + '\')">' + esc(n) + '</button>'
                ).join('');
                const curs = (state.currencies || []).map(sc => {
                    const sel = state.selectedCurrency && state.selectedCurrency.id === sc.id;
                    return '<button class="chip' + (sel ? ' selected' : '') + '" onclick="pickCurrency(\'' + esc(sc.symbol) + '\',\'' + esc(sc.networkId) + '\')">' +
                        esc(sc.symbol) + '<span class="sub">' + esc(sc.networkId) + '</span></button>';
                }).join('');
                const rate = state.rate
                    ? '<div class="rate">You pay <strong class="mono">' + esc(fmt(state.rate.payerAmount, state.selectedCurrency.symbol)) + '</strong></div>'
                    : '';
                el.innerHTML = head +
                    (state.actionError ? '<div class="inline-error">' + esc(state.actionError) + '</div>' : '') +
                    '<h2>Network</h2><div class="row">' + (nets || '<span class="order">No currencies available</span>') + '</div>' +
                    '<h2>Currency</h2><div class="row">' + (curs || '<span class="order">Pick a network</span>') + '</div>' +
                    rate +
                    '<button class="primary" id="payBtn" onclick="generateAddress()"' + (state.selectedCurrency ? '' : ' disabled') + '>Continue to payment</button>';
                break;
            }
            case 'awaiting_payment': {
                const low = state.remainingSeconds < 120 ? ' low' : '';
                el.innerHTML = head +
                    '<h2>Send exactly</h2>' +
                    '<div class="address-box mono" onclick="copyAddress()" title="Click to copy">' +
                        (inv.cryptoAmount ? '<strong>' + esc(fmt(inv.cryptoAmount, inv.cryptoCurrency)) + '</strong><br>' : '') +
                        esc(inv.paymentAddress) +
                    '</div>' +
                    '<div class="order">Network: ' + esc(inv.networkId) + '</div>' +
                    '<div class="countdown' + low + '"><div class="time mono" id="timer">' + mmss(state.remainingSeconds) + '</div><div class="label">until this address expires</div></div>' +
                    '<button class="ghost" onclick="goBack()">Choose a different currency</button>';
                break;
            }
            case 'confirming':
                el.innerHTML = head + '<div class="status"><div class="icon pulse">⏳</div><div class="title">Payment detected</div><div class="desc">Waiting for network confirmations…</div></div>';
                break;
            case 'success':
                el.innerHTML = head + '<div class="status ok"><div class="icon">✓</div><div class="title">Payment complete</div><div class="desc">You can close this page.</div></div>';
                stop();
                break;
            case 'expired':
                el.innerHTML = head + '<div class="status"><div class="icon">✕</div><div class="title">Invoice expired</div><div class="desc">This payment window has closed.</div></div>' +
                    '<button class="ghost" onclick="resetSession()">Start over</button>';
                stop();
                break;
            case 'error':
                el.innerHTML = '<div class="status err"><div class="icon">!</div><div class="title">Something went wrong</div><div class="desc">' + esc(state.errorMessage) + '</div></div>' +
                    '<button class="ghost" onclick="resetSession()">Try again</button>';
                stop();
                break;
            default:
                el.innerHTML = '<div class="status"><div class="desc pulse">Loading invoice…</div></div>';
            }
        }

        function apply(snap) { state = snap; render(); }

        function call(path, body) {
            return fetch(api + path, {
                method: path === '' ? 'GET' : 'POST',
                headers: {'Content-Type': 'application/json'},
                body: body ? JSON.stringify(body) : undefined,
            }).then(r => r.json()).then(data => {
                if (data.step) apply(data);
                return data;
            });
        }

        function pickNetwork(n) { call('/network', {network: n}); }
        function pickCurrency(token, network) { call('/currency', {token, network}); }
        function generateAddress() {
            const btn = document.getElementById('payBtn');
            if (btn) btn.disabled = true;
            call('/address');
        }
        function goBack() { call('/back'); }
        function resetSession() { call('/reset'); }
        function copyAddress() { navigator.clipboard?.writeText(state.invoice.paymentAddress); }

        // Local display tick; the server owns expiry.
        let tickHandle = setInterval(() => {
            if (!state || state.step !== 'awaiting_payment') return;
            if (state.remainingSeconds > 0) {
                state.remainingSeconds--;
                const t = document.getElementById('timer');
                if (t) t.textContent = mmss(state.remainingSeconds);
            } else {
                call('');
            }
        }, 1000);

        // Poll as a fallback; WebSocket push keeps it fresh in between.
        let pollHandle = setInterval(() => {
            if (state && ['success','expired','error'].includes(state.step)) return;
            call('');
        }, 10000);

        function stop() {
            clearInterval(tickHandle);
            clearInterval(pollHandle);
            if (ws) ws.close();
        }

        function connect() {
            const proto = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(proto + location.host + '/ws/' + encodeURIComponent(invoiceId));
            ws.onmessage = e => {
                let ev;
                try { ev = JSON.parse(e.data); } catch { return; }
                if (ev.type === 'countdown' && state && state.step === 'awaiting_payment') {
                    state.remainingSeconds = ev.data.remainingSeconds;
                    const t = document.getElementById('timer');
                    if (t) t.textContent = mmss(state.remainingSeconds);
                } else {
                    call('');
                }
            };
            ws.onclose = () => { ws = null; };
        }

        call('').then(connect);
    </script>
</body>
</html>`

// paymentPageHandler serves the payment page shell. The invoice id is the only
// server-injected value; everything else is fetched by the page itself.
func (s *Server) paymentPageHandler(c *gin.Context) {
	// The id already passed InvoiceParamMiddleware; JSON-quote it for the script.
	id := `"` + c.Param("invoiceId") + `"`
	page := strings.Replace(paymentPageHTML, "{{.InvoiceID}}", id, 1)

	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, page)
}
