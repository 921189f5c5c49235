package httpserver

// recordPage polls /record once a second and keeps a local run timer.
const recordPage = `<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>CPR Machine Record</title>
<style>
  body { font-family: Arial, sans-serif; background: #f4f4f9; color: #333; text-align: center; margin: 0; }
  h1 { background: #6200ea; color: #fff; padding: 20px 0; margin: 0; }
  .card { margin: 20px auto; padding: 20px; border: 1px solid #ddd; border-radius: 10px;
          background: #fff; width: 80%; max-width: 600px; box-shadow: 0 4px 8px rgba(0,0,0,.1); }
  p { font-size: 1.2em; }
  span { font-weight: bold; color: #6200ea; }
</style>
</head>
<body>
<h1>CPR Machine Record</h1>
<div class="card">
  <p>Electric shocks: <span id="electricShocks">Loading...</span></p>
  <p>CPR cycles: <span id="cprCycles">Loading...</span></p>
  <p>Ventilations: <span id="breathe">Loading...</span></p>
  <p>Run time: <span id="runTime">Not started</span></p>
</div>
<script>
let startTime = null;
let timer = null;

function showRunTime() {
  const el = document.getElementById('runTime');
  if (!startTime) { el.innerText = 'Not started'; return; }
  const elapsed = Math.floor((Date.now() - startTime) / 1000);
  el.innerText = Math.floor(elapsed / 60) + 'm ' + (elapsed % 60) + 's';
}

async function poll() {
  try {
    const res = await fetch('/record');
    if (!res.ok) throw new Error('HTTP ' + res.status);
    const data = await res.json();
    document.getElementById('electricShocks').innerText = data.electric_shocks;
    document.getElementById('cprCycles').innerText = data.cpr_cycles;
    document.getElementById('breathe').innerText = data.breathe;
    if (data.start_time === null) {
      startTime = null;
      clearInterval(timer);
      timer = null;
      showRunTime();
    } else if (!startTime) {
      startTime = new Date(data.start_time).getTime();
      showRunTime();
      timer = setInterval(showRunTime, 1000);
    }
  } catch (err) {
    console.error('record poll failed:', err);
  }
}

setInterval(poll, 1000);
poll();
</script>
</body>
</html>
`
